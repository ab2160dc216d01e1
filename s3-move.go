package main

import (
	"context"
	"fmt"
	"net/url"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// Archiver moves processed raw mail under a dated prefix in its own bucket.
type Archiver struct {
	svc     s3iface.S3API
	prefix  string
	runDate string
}

func NewArchiver(svc s3iface.S3API, prefix string, runDate string) *Archiver {
	return &Archiver{svc: svc, prefix: prefix, runDate: runDate}
}

func (a *Archiver) destination(item string) string {
	return path.Join(a.prefix, a.runDate, path.Base(item))
}

func (a *Archiver) Archive(ctx context.Context, bucket string, item string) error {
	newKey := a.destination(item)
	logger.Debugf("Moving: s3://%s/%s to s3://%s/%s", bucket, item, bucket, newKey)
	return S3RenameFile(ctx, a.svc, bucket, item, newKey)
}

func S3RenameFile(ctx context.Context, svc s3iface.S3API, bucket string, source string, destination string) error {

	inputCopy := &s3.CopyObjectInput{
		Bucket:     aws.String(bucket),
		CopySource: aws.String(bucket + "/" + url.PathEscape(source)),
		Key:        aws.String(destination),
	}

	_, errCopy := svc.CopyObjectWithContext(ctx, inputCopy)
	if errCopy != nil {
		return fmt.Errorf("s3 rename copy: %v", errCopy)
	}

	inputDelete := &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(source),
	}

	_, errDelete := svc.DeleteObjectWithContext(ctx, inputDelete)
	if errDelete != nil {
		return fmt.Errorf("s3 rename delete: %v", errDelete)
	}
	return nil
}
