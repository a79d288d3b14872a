// Package xerrors gives every indexer a common vocabulary for the error
// kinds in spec §7 so that svc.ErrorRing entries and fatal-state transitions
// carry a stable, machine-checkable errorType instead of an ad hoc string.
package xerrors

import (
	"errors"
	"fmt"
	"time"
)

// Kind is one of the error kinds enumerated in spec §7.
type Kind string

const (
	RunNotFound            Kind = "RUN_NOT_FOUND"
	MetadataTimeout         Kind = "METADATA_TIMEOUT"
	BatchProcessingFailed   Kind = "BATCH_PROCESSING_FAILED"
	ResourceBindingMissing  Kind = "RESOURCE_BINDING_MISSING"
	InvalidBatch            Kind = "INVALID_BATCH"
	FatalWrite              Kind = "FATAL_WRITE"
)

// Fatal returns whether errors of this kind transition a service to ERROR,
// per the terminal-vs-recoverable split in spec §7.
func (k Kind) Fatal() bool {
	switch k {
	case RunNotFound, MetadataTimeout, ResourceBindingMissing, FatalWrite:
		return true
	default:
		return false
	}
}

// IndexerError is the concrete error type carrying a Kind alongside the
// wrapped cause, so callers can both errors.Is/As against the cause and read
// the stable errorType for OperationalError construction.
type IndexerError struct {
	Kind      Kind
	Message   string
	Cause     error
	Timestamp time.Time
}

func (e *IndexerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *IndexerError) Unwrap() error { return e.Cause }

// New builds an IndexerError with no wrapped cause.
func New(kind Kind, message string) *IndexerError {
	return &IndexerError{Kind: kind, Message: message, Timestamp: time.Now()}
}

// Wrap builds an IndexerError around an existing error, following the
// teacher's fmt.Errorf("...: %w", err) convention but preserving the kind as
// structured data rather than burying it in the message string.
func Wrap(kind Kind, message string, cause error) *IndexerError {
	return &IndexerError{Kind: kind, Message: message, Cause: cause, Timestamp: time.Now()}
}

// As extracts an *IndexerError from err, if present.
func As(err error) (*IndexerError, bool) {
	var ie *IndexerError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it (or something it wraps) is an
// IndexerError, otherwise "" .
func KindOf(err error) Kind {
	if ie, ok := As(err); ok {
		return ie.Kind
	}
	return ""
}
