package main

import (
	"bytes"
	"io/ioutil"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
	"github.com/stretchr/testify/require"
)

const (
	testMailBucket        = "incoming-mail"
	testAttachmentsBucket = "mail-attachments"
	testTable             = "emails"
	testTopic             = "arn:aws:sns:eu-west-1:123456789012:email-parsed-status"
)

func loadTestData(t *testing.T, filename string) []byte {
	t.Helper()
	b, err := os.ReadFile(filename)
	require.NoError(t, err)
	return b
}

// fakeS3 is an in-memory bucket/key store.
type fakeS3 struct {
	s3iface.S3API

	mu       sync.Mutex
	objects  map[string][]byte
	metadata map[string]map[string]*string
	gets     int
	puts     []string
	copies   []string
	deletes  []string

	getErr   error
	putErr   func(key string) error
	putDelay func(body []byte) time.Duration
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects:  map[string][]byte{},
		metadata: map[string]map[string]*string{},
	}
}

func s3Path(bucket, key string) string {
	return bucket + "/" + key
}

func (f *fakeS3) put(bucket, key string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[s3Path(bucket, key)] = body
}

func (f *fakeS3) object(bucket, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[s3Path(bucket, key)]
	return b, ok
}

func (f *fakeS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	b, ok := f.objects[s3Path(aws.StringValue(in.Bucket), aws.StringValue(in.Key))]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil)
	}
	return &s3.GetObjectOutput{Body: ioutil.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error) {
	key := aws.StringValue(in.Key)
	if f.putErr != nil {
		if err := f.putErr(key); err != nil {
			return nil, err
		}
	}
	body, err := ioutil.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.putDelay != nil {
		time.Sleep(f.putDelay(body))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	path := s3Path(aws.StringValue(in.Bucket), key)
	f.objects[path] = body
	f.metadata[path] = in.Metadata
	f.puts = append(f.puts, key)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) CopyObjectWithContext(ctx aws.Context, in *s3.CopyObjectInput, opts ...request.Option) (*s3.CopyObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, err := url.PathUnescape(aws.StringValue(in.CopySource))
	if err != nil {
		return nil, err
	}
	b, ok := f.objects[src]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil)
	}
	f.objects[s3Path(aws.StringValue(in.Bucket), aws.StringValue(in.Key))] = b
	f.copies = append(f.copies, aws.StringValue(in.Key))
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjectWithContext(ctx aws.Context, in *s3.DeleteObjectInput, opts ...request.Option) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, s3Path(aws.StringValue(in.Bucket), aws.StringValue(in.Key)))
	f.deletes = append(f.deletes, aws.StringValue(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

type fakeDynamo struct {
	dynamodbiface.DynamoDBAPI

	mu    sync.Mutex
	items []*dynamodb.PutItemInput
	err   error
}

func (f *fakeDynamo) PutItemWithContext(ctx aws.Context, in *dynamodb.PutItemInput, opts ...request.Option) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, in)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

type fakeSNS struct {
	snsiface.SNSAPI

	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) PublishWithContext(ctx aws.Context, in *sns.PublishInput, opts ...request.Option) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-0001")}, nil
}

// snsEvent wraps each message in its own SNS record.
func snsEvent(messages ...string) events.SNSEvent {
	var ev events.SNSEvent
	for _, m := range messages {
		ev.Records = append(ev.Records, events.SNSEventRecord{
			EventSource: "aws:sns",
			SNS:         events.SNSEntity{Message: m},
		})
	}
	return ev
}
