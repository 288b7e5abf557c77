package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures so callers can decide how to react.
type ErrorKind string

const (
	// KindInvalidMilestoneID means the catalog and responses are out of sync.
	KindInvalidMilestoneID ErrorKind = "invalid_milestone_id"

	// KindServiceUnavailable means the evaluation service could not be reached or timed out.
	KindServiceUnavailable ErrorKind = "service_unavailable"

	// KindServiceError means the service rejected the request or answered with an unknown shape.
	KindServiceError ErrorKind = "service_error"

	// KindPersistenceWrite means a durable write did not complete.
	KindPersistenceWrite ErrorKind = "persistence_write_failure"

	// KindInvalidInput covers bad ages, language codes and similar caller input.
	KindInvalidInput ErrorKind = "invalid_input"

	KindInternal ErrorKind = "internal"
)

// Error is an engine failure with a kind.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind. A sentinel is an Error with no message and no cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidMilestoneID = &Error{Kind: KindInvalidMilestoneID}
	ErrServiceUnavailable = &Error{Kind: KindServiceUnavailable}
	ErrServiceError       = &Error{Kind: KindServiceError}
	ErrPersistenceWrite   = &Error{Kind: KindPersistenceWrite}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
)

// NewError builds an Error of the given kind.
func NewError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an error chain. Unclassified errors are internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether retrying the same action may succeed.
func IsRetryable(err error) bool {
	return KindOf(err) == KindServiceUnavailable
}
