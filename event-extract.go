package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// ExtractEvent unwraps the single SNS record and validates the SES receipt
// inside it. The returned source address is already normalized.
func ExtractEvent(event events.SNSEvent) (*MailReceipt, ActionDescriptor, string, error) {

	if len(event.Records) != 1 {
		return nil, ActionDescriptor{}, "", fmt.Errorf("%w: expected only 1 record, got %d", ErrMalformedEnvelope, len(event.Records))
	}

	snsMessage := event.Records[0].SNS.Message
	logger.Debugf("SNS message: %s", snsMessage)

	var receipt MailReceipt
	if err := json.Unmarshal([]byte(snsMessage), &receipt); err != nil {
		return nil, ActionDescriptor{}, "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	action, err := getAction(&receipt)
	if err != nil {
		return nil, ActionDescriptor{}, "", err
	}

	source, err := getSourceEmail(&receipt)
	if err != nil {
		return nil, ActionDescriptor{}, "", err
	}

	if action.Type != ActionTypeS3 {
		return nil, ActionDescriptor{}, "", &UnsupportedActionTypeError{Type: action.Type}
	}
	if action.BucketName == "" {
		return nil, ActionDescriptor{}, "", &MissingFieldError{Path: "receipt.action.bucketName"}
	}
	if action.ObjectKey == "" {
		return nil, ActionDescriptor{}, "", &MissingFieldError{Path: "receipt.action.objectKey"}
	}

	return &receipt, *action, source, nil
}

func getAction(r *MailReceipt) (*ActionDescriptor, error) {
	if r.Receipt == nil {
		return nil, &MissingFieldError{Path: "receipt"}
	}
	if r.Receipt.Action == nil {
		return nil, &MissingFieldError{Path: "receipt.action"}
	}
	logger.Debugf("SNS action: %+v", *r.Receipt.Action)
	return r.Receipt.Action, nil
}

func getSourceEmail(r *MailReceipt) (string, error) {
	if r.Mail == nil {
		return "", &MissingFieldError{Path: "mail"}
	}
	if r.Mail.Source == nil {
		return "", &MissingFieldError{Path: "mail.source"}
	}
	logger.Debugf("Source email: %s", *r.Mail.Source)
	return normalizeSource(*r.Mail.Source)
}

// normalizeSource decodes the VERP style addresses produced by the sending
// mail system, which carry the real sender in the third '=' segment.
func normalizeSource(source string) (string, error) {
	if !strings.Contains(source, "=") {
		return source, nil
	}
	segments := strings.Split(source, "=")
	if len(segments) < 3 {
		return "", &InvalidSourceEncodingError{Source: source, Segments: len(segments)}
	}
	return segments[2], nil
}
