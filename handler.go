package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
)

// Outcome is the terminal state of one handled event. Err is nil only when
// the status notification was published.
type Outcome struct {
	EmailID   string
	Result    *ExtractionResult
	MessageID string
	Err       error
	Retry     bool
}

type Pipeline struct {
	extractor *Extractor
	notifier  *Notifier
	archiver  *Archiver
}

// NewPipeline wires the stages together. archiver may be nil.
func NewPipeline(extractor *Extractor, notifier *Notifier, archiver *Archiver) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		notifier:  notifier,
		archiver:  archiver,
	}
}

// Handle runs one event end to end and never panics on bad input; every
// failure ends up in the returned Outcome.
func (p *Pipeline) Handle(ctx context.Context, event events.SNSEvent) Outcome {

	_, action, source, err := ExtractEvent(event)
	if err != nil {
		return Outcome{Err: err}
	}

	emailID := action.ObjectKey
	out := Outcome{EmailID: emailID}

	result, err := p.extractor.Extract(ctx, action.BucketName, action.ObjectKey, source, emailID)
	if err != nil {
		out.Err = err
		out.Retry = isRetryable(err)
		return out
	}
	out.Result = result
	logger.Debugf("Response: %+v", *result)

	messageID, err := p.notifier.Notify(ctx, result)
	if err != nil {
		out.Err = err
		return out
	}
	out.MessageID = messageID

	if p.archiver != nil {
		if err := p.archiver.Archive(ctx, action.BucketName, action.ObjectKey); err != nil {
			logger.Errorf("S3 Move Error: %v", err)
		}
	}

	return out
}

// HandleLambda is the Lambda entry point. Failures are logged and swallowed
// so the runtime never retries the invocation.
func (p *Pipeline) HandleLambda(ctx context.Context, event events.SNSEvent) error {

	requestID := ""
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		requestID = lc.AwsRequestID
	}

	log := logger.With("request_id", requestID)
	log.Infof("START PROCESS")

	out := p.Handle(ctx, event)
	logOutcome(log, out)

	log.Infof("END PROCESS")
	return nil
}
