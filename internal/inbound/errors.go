package inbound

import (
	"fmt"

	"github.com/shineum/postmark-inbound/internal/document"
)

// ErrEmptyInput is returned by New when the payload text is empty.
var ErrEmptyInput = document.ErrEmptyInput

// Parse failures are reported with the document package's error types.
type (
	SyntaxError = document.SyntaxError
	DecodeError = document.DecodeError
)

// MissingFieldError is returned by accessors whose backing field is absent,
// null, or of the wrong JSON type.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("inbound: missing field %s", e.Field)
}

// ConfigError reports invalid download options.
type ConfigError struct {
	Option string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("inbound: invalid download option %s: %s", e.Option, e.Reason)
}

// SizeLimitExceededError is returned when an attachment's declared
// ContentLength is over the configured maximum.
type SizeLimitExceededError struct {
	Name          string
	ContentLength int64
	Max           int64
}

func (e *SizeLimitExceededError) Error() string {
	return fmt.Sprintf("inbound: attachment %q declares %d bytes, over the limit of %d", e.Name, e.ContentLength, e.Max)
}

// ContentTypeRejectedError is returned when an attachment's content type is
// not in the allow-list.
type ContentTypeRejectedError struct {
	Name        string
	ContentType string
}

func (e *ContentTypeRejectedError) Error() string {
	return fmt.Sprintf("inbound: attachment %q has content type %q which is not allowed", e.Name, e.ContentType)
}

// WriteError wraps a failure from the storage writer.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("inbound: cannot save %s, check path and permissions: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
