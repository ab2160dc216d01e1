package main

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"golang.org/x/sync/errgroup"
)

// metadataTimestampLayout is DD/MM/YYYY HH:MM:SS.
const metadataTimestampLayout = "02/01/2006 15:04:05"

// ExtractorConfig is the part of the process configuration the extractor needs.
type ExtractorConfig struct {
	AttachmentsBucket string
	MetadataTable     string
	Workers           int
}

// Extractor downloads a raw mail, stores each attachment in S3 and records
// its metadata in DynamoDB.
type Extractor struct {
	s3     s3iface.S3API
	dynamo dynamodbiface.DynamoDBAPI
	conf   ExtractorConfig
	now    func() time.Time
}

func NewExtractor(s3svc s3iface.S3API, dynamo dynamodbiface.DynamoDBAPI, conf ExtractorConfig) *Extractor {
	return &Extractor{
		s3:     s3svc,
		dynamo: dynamo,
		conf:   conf,
		now:    time.Now,
	}
}

// Extract processes the mail stored at s3://bucket/objectKey. Attachments
// persisted before a failure are left in place.
func (e *Extractor) Extract(ctx context.Context, bucket, objectKey, source, emailID string) (*ExtractionResult, error) {

	raw, err := S3Download(ctx, e.s3, bucket, objectKey)
	if err != nil {
		return nil, err
	}

	envelope, err := ParseRawMail(raw)
	if err != nil {
		return nil, err
	}

	subject := envelope.GetHeader("Subject")
	timestamp := e.now().UTC().Format(metadataTimestampLayout)

	discovered, err := WalkAttachments(envelope.Root, emailID, objectKey)
	if err != nil {
		return nil, err
	}
	logger.Infof("Found %d attachments in s3://%s/%s", len(discovered), bucket, objectKey)

	persist := func(d DiscoveredAttachment) error {
		if err := S3Upload(ctx, e.s3, e.conf.AttachmentsBucket, d.Key, d.Part.ContentType, d.JobTag, d.Part.Content); err != nil {
			return err
		}
		logger.Infof("Document was extracted and saved in %q. Document name: %q (job %s)", e.conf.AttachmentsBucket, d.AttachmentID, d.JobTag)

		return DynamoPutMetadata(ctx, e.dynamo, e.conf.MetadataTable, AttachmentMetadataRecord{
			EmailID:      emailID,
			Subject:      subject,
			Source:       source,
			DocumentName: d.AttachmentID,
			Timestamp:    timestamp,
		})
	}

	if e.conf.Workers > 1 {
		err = persistConcurrently(discovered, e.conf.Workers, persist)
	} else {
		err = persistSequentially(discovered, persist)
	}
	if err != nil {
		return nil, err
	}

	attachments := make([]Attachment, len(discovered))
	for i, d := range discovered {
		attachments[i] = Attachment{
			AttachmentID: d.AttachmentID,
			ContentType:  d.Part.ContentType,
			Key:          d.Key,
		}
	}

	return &ExtractionResult{
		EmailID:     objectKey,
		Attachments: attachments,
	}, nil
}

func persistSequentially(discovered []DiscoveredAttachment, persist func(DiscoveredAttachment) error) error {
	for _, d := range discovered {
		if err := persist(d); err != nil {
			return err
		}
	}
	return nil
}

// groupByKey splits attachments into runs that share a storage key, keeping
// traversal order inside each run and ordering runs by first appearance.
func groupByKey(discovered []DiscoveredAttachment) [][]DiscoveredAttachment {
	var groups [][]DiscoveredAttachment
	index := map[string]int{}
	for _, d := range discovered {
		i, ok := index[d.Key]
		if !ok {
			i = len(groups)
			index[d.Key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], d)
	}
	return groups
}

// persistConcurrently runs each key group on its own worker, so writes to a
// shared key land in traversal order. It stops dispatching after the first
// failure but lets attachments already in flight finish.
func persistConcurrently(discovered []DiscoveredAttachment, workers int, persist func(DiscoveredAttachment) error) error {

	var g errgroup.Group
	g.SetLimit(workers)

	failed := make(chan struct{})
	markFailed := sync.OnceFunc(func() { close(failed) })
	hasFailed := func() bool {
		select {
		case <-failed:
			return true
		default:
			return false
		}
	}

	for _, group := range groupByKey(discovered) {
		group := group
		if hasFailed() {
			break
		}
		g.Go(func() error {
			for i, d := range group {
				if i > 0 && hasFailed() {
					return nil
				}
				if err := persist(d); err != nil {
					markFailed()
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
