package main

import (
	"context"
	"fmt"
	"io/ioutil"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Download fetches an object into memory. Missing buckets and keys are
// ErrObjectNotFound, every other failure is the retryable ErrRetrieval.
func S3Download(ctx context.Context, svc s3iface.S3API, bucket string, item string) ([]byte, error) {

	logger.Debugf("Downloading s3://%s/%s", bucket, item)

	out, err := svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(item),
	})
	if err != nil {

		if aerr, ok := err.(awserr.Error); ok {
			switch aerr.Code() {
			case s3.ErrCodeNoSuchBucket:
				return nil, fmt.Errorf("%w: bucket not exist: %s (%v)", ErrObjectNotFound, bucket, err)
			case s3.ErrCodeNoSuchKey:
				return nil, fmt.Errorf("%w: file not exist: %s (%v)", ErrObjectNotFound, item, err)
			}
		}
		return nil, fmt.Errorf("%w: s3://%s/%s (%v)", ErrRetrieval, bucket, item, err)
	}
	defer out.Body.Close()

	body, err := ioutil.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading s3://%s/%s (%v)", ErrRetrieval, bucket, item, err)
	}

	logger.Debugf("Downloaded %d bytes", len(body))

	return body, nil
}
