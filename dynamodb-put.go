package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

func DynamoPutMetadata(ctx context.Context, svc dynamodbiface.DynamoDBAPI, table string, record AttachmentMetadataRecord) error {

	item, err := dynamodbattribute.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", ErrMetadataPersist, record.DocumentName, err)
	}

	_, err = svc.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:    aws.String(table),
		Item:         item,
		ReturnValues: aws.String(dynamodb.ReturnValueNone),
	})
	if err != nil {
		return fmt.Errorf("%w: table %s: %v", ErrMetadataPersist, table, err)
	}

	logger.Debugf("Document details were saved in %q. Document name: %q", table, record.DocumentName)
	return nil
}
