// Package errors provides the typed error taxonomy of the exception engine.
// All types support unwrapping via errors.As and errors.Is.
package errors

import (
	"fmt"
	"time"
)

// ValidationError reports malformed input to rule registration or exception
// creation. Nothing is persisted; the caller must correct and resubmit.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.reason())
	}
	return fmt.Sprintf("validation failed: %s", e.reason())
}

func (e *ValidationError) reason() string {
	if e.Reason != "" {
		return e.Reason
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "invalid input"
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DurationError reports an exception request whose lifetime exceeds the
// configured ceiling. The request is rejected whole; there is no partial
// grant.
type DurationError struct {
	Requested time.Duration
	Ceiling   time.Duration
}

func (e *DurationError) Error() string {
	return fmt.Sprintf("requested lifetime %v exceeds the configured ceiling %v", e.Requested, e.Ceiling)
}

// ConflictError reports an identifier collision not resolved by the
// idempotency key: the stored exception with the same identifier was created
// from different inputs.
type ConflictError struct {
	ID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("exception %q already exists with different inputs", e.ID)
}

// NotFoundError reports a lookup of an unknown rule or exception.
type NotFoundError struct {
	Kind string // "rule" or "exception"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// StorageError reports a persistence-layer failure. It is fatal to the
// in-flight operation: an evaluation that cannot complete its audit write
// fails closed, and lifecycle writes roll back rather than persist partially.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
