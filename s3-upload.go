package main

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Upload writes one attachment. The job tag travels as object metadata so
// downstream jobs can find the attachment without the DynamoDB record.
func S3Upload(ctx context.Context, svc s3iface.S3API, bucket string, item string, contentType string, tag string, body []byte) error {

	logger.Infof("Uploading: s3://%s/%s (%s, %d)", bucket, item, contentType, len(body))

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(item),
		Body:   bytes.NewReader(body),
		Metadata: map[string]*string{
			"job-tag": aws.String(tag),
		},
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	result, err := svc.PutObjectWithContext(ctx, input)
	if err != nil {
		return fmt.Errorf("%w: unable to upload item to s3://%s/%s: %v", ErrAttachmentPersist, bucket, item, err)
	}
	logger.Debugf("Upload Result=%v", result)

	return nil
}
