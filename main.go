package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/cenkalti/backoff/v4"
	"github.com/jamiealquiza/envy"
)

const (
	modeLambda = "lambda"
	modeSQS    = "sqs"
)

type config struct {
	mode                     *string
	region                   *string
	metadataTable            *string
	attachmentsBucket        *string
	statusTopic              *string
	workers                  *int
	moveFilesAfterProcessing *string
	logVerbose               *bool
	sqsName                  *string
	sqsPollTimeout           *int64
	sqsPollMaxMessages       *int64
	sqsVisibilityTimeout     *int64
	doneAfterCountEmptyPolls *int
	sqsDelete                *bool
	runDate                  *string
}

func (c config) validate() error {
	if *c.metadataTable == "" || *c.attachmentsBucket == "" || *c.statusTopic == "" {
		return errors.New("table, attachments and topic are mandatory")
	}
	if *c.workers < 1 {
		return errors.New("workers must be 1+")
	}
	switch *c.mode {
	case modeLambda:
		return nil
	case modeSQS:
		if *c.sqsName == "" ||
			*c.sqsPollTimeout < 1 ||
			*c.sqsPollTimeout > 20 ||
			*c.sqsPollMaxMessages > 10 ||
			*c.sqsPollMaxMessages < 1 ||
			*c.doneAfterCountEmptyPolls < 1 {
			return errors.New("sqs mode needs -sqs, polltimeout 1-20, pollmessages 1-10, emptypolls 1+")
		}
		return nil
	default:
		return fmt.Errorf("unknown mode %q", *c.mode)
	}
}

func main() {

	runDate := time.Now().UTC().Format("20060102")

	conf := config{
		flag.String("mode", modeLambda, "Event source: lambda (SNS trigger) or sqs (poll an SQS queue subscribed to the SNS topic)"),
		flag.String("region", "", "AWS region, defaults to the SDK environment"),
		flag.String("table", "", "Name of the DynamoDB table for attachment metadata [MANDATORY]"),
		flag.String("attachments", "", "Name of the S3 bucket to store attachments [MANDATORY]"),
		flag.String("topic", "", "ARN of the SNS topic for EMAIL_PARSED_STATUS notifications [MANDATORY]"),
		flag.Int("workers", 1, "Attachments persisted concurrently per email, 1+"),
		flag.String("move", "", "Move email to this S3 prefix after processing. Date will be automatically added"),
		flag.Bool("verbose", false, "Show detailed information during run"),
		flag.String("sqs", "", "Name of the SQS queue to poll [MANDATORY in sqs mode]"),
		flag.Int64("polltimeout", 10, "SQS slow poll timeout, 1-20"),
		flag.Int64("pollmessages", 10, "SQS maximum messages per poll, 1-10"),
		flag.Int64("sqsprocessingtime", 900, "SQS visibility timeout"),
		flag.Int("emptypolls", 3, "How many consecutive times to poll SQS and receive zero messages before exiting, 1+"),
		flag.Bool("deletesqs", true, "Delete messages from SQS after processing"),
		&runDate,
	}
	envy.Parse("MAILPARSE")
	flag.Parse()

	if err := conf.validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	if err := logInit(*conf.logVerbose); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	awsConfig := aws.NewConfig()
	if *conf.region != "" {
		awsConfig = awsConfig.WithRegion(*conf.region)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *awsConfig,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		logger.Fatalf("AWS Session Error: %v", err)
	}

	s3svc := s3.New(sess)
	extractor := NewExtractor(s3svc, dynamodb.New(sess), ExtractorConfig{
		AttachmentsBucket: *conf.attachmentsBucket,
		MetadataTable:     *conf.metadataTable,
		Workers:           *conf.workers,
	})
	notifier := NewNotifier(sns.New(sess), *conf.statusTopic)

	var archiver *Archiver
	if *conf.moveFilesAfterProcessing != "" {
		archiver = NewArchiver(s3svc, *conf.moveFilesAfterProcessing, *conf.runDate)
	}

	pipeline := NewPipeline(extractor, notifier, archiver)

	if *conf.mode == modeLambda {
		lambda.Start(pipeline.HandleLambda)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gracefulStop(cancel)

	if err := runSQS(ctx, conf, sqs.New(sess), pipeline); err != nil {
		logger.Fatalf("%v", err)
	}
}

func runSQS(ctx context.Context, conf config, sqsClient sqsiface.SQSAPI, pipeline *Pipeline) error {

	var wg sync.WaitGroup

	queueURL, err := sqsQueueURL(ctx, sqsClient, *conf.sqsName)
	if err != nil {
		return err
	}

	deleteSqsChan := make(chan string)

	wg.Add(1)
	go func() {
		defer wg.Done()
		sqsDelete(ctx, sqsClient, queueURL, deleteSqsChan, deleteBackOff)
	}()

	poll := pollConfig{
		pollTimeout:       *conf.sqsPollTimeout,
		pollMaxMessages:   *conf.sqsPollMaxMessages,
		visibilityTimeout: *conf.sqsVisibilityTimeout,
	}

	pollRetry := backoff.NewExponentialBackOff()
	pollRetry.MaxElapsedTime = 0

	pollCount := *conf.doneAfterCountEmptyPolls
	for pollCount > 0 && ctx.Err() == nil {

		logger.Debugf("pollCount=%d", pollCount)

		msgs, err := PollSQS(ctx, sqsClient, queueURL, poll)
		if err != nil {
			logger.Errorf("Failed to poll SQS: %v", err)
			pollCount--
			sleepWithContext(ctx, pollRetry.NextBackOff())
			continue
		}
		pollRetry.Reset()

		pollCount--
		for _, msg := range msgs {
			pollCount = *conf.doneAfterCountEmptyPolls

			out := pipeline.Handle(ctx, msg.Event)
			logOutcome(logger, out)

			if *conf.sqsDelete && !out.Retry {
				deleteSqsChan <- msg.ReceiptHandle
			}
		}
	}

	close(deleteSqsChan)
	wg.Wait()
	return nil
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
