package main

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedEnvelope     = errors.New("malformed envelope")
	ErrMalformedPayload      = errors.New("malformed payload")
	ErrMissingField          = errors.New("missing field")
	ErrInvalidSourceEncoding = errors.New("invalid source encoding")
	ErrUnsupportedActionType = errors.New("unsupported action type")
	ErrObjectNotFound        = errors.New("object not found")
	ErrRetrieval             = errors.New("retrieval error")
	ErrParse                 = errors.New("parse error")
	ErrAttachmentPersist     = errors.New("attachment persist error")
	ErrMetadataPersist       = errors.New("metadata persist error")
	ErrNotificationPublish   = errors.New("notification publish error")
)

// MissingFieldError names the dotted path of a required field absent from the
// mail receipt event.
type MissingFieldError struct {
	Path string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMissingField, e.Path)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

type UnsupportedActionTypeError struct {
	Type string
}

func (e *UnsupportedActionTypeError) Error() string {
	return fmt.Sprintf("%v: expected action type to be S3, got: %q", ErrUnsupportedActionType, e.Type)
}

func (e *UnsupportedActionTypeError) Is(target error) bool {
	return target == ErrUnsupportedActionType
}

// InvalidSourceEncodingError is returned when a source address contains '='
// but has fewer than three '=' separated segments.
type InvalidSourceEncodingError struct {
	Source   string
	Segments int
}

func (e *InvalidSourceEncodingError) Error() string {
	return fmt.Sprintf("%v: %q has %d segments, need at least 3", ErrInvalidSourceEncoding, e.Source, e.Segments)
}

func (e *InvalidSourceEncodingError) Is(target error) bool {
	return target == ErrInvalidSourceEncoding
}

// isRetryable reports whether redelivering the same event could succeed.
// Only transient blob store reads qualify.
func isRetryable(err error) bool {
	return errors.Is(err, ErrRetrieval)
}
