// Package apperr defines the failure taxonomy shared by the session manager
// and the sync engine.
//
// Every failure surfaced to the presentation layer is an *Error carrying one
// of five codes:
//   - VALIDATION: bad input, detected before any remote call, never notified
//   - CONFLICT_DETECTED: duplicate uniqueKey on create, needs confirmation
//   - STALE_RESOURCE: update target was deleted upstream, auto-reconciled
//   - AUTHENTICATION_FAILED: bad credentials or a rejected token
//   - TRANSPORT: network or server failure
//
// Use the Is* helpers rather than comparing codes directly; they unwrap.
package apperr

import (
	"errors"
	"fmt"
)

// Code categorizes failures.
type Code string

const (
	// CodeValidation indicates empty or invalid input.
	CodeValidation Code = "VALIDATION"

	// CodeConflict indicates a duplicate uniqueKey on create.
	CodeConflict Code = "CONFLICT_DETECTED"

	// CodeStale indicates the remote target no longer exists.
	CodeStale Code = "STALE_RESOURCE"

	// CodeAuthFailed indicates bad credentials or an expired/rejected token.
	CodeAuthFailed Code = "AUTHENTICATION_FAILED"

	// CodeTransport indicates a network or generic server failure.
	CodeTransport Code = "TRANSPORT"
)

// Error is a classified failure.
type Error struct {
	// Code identifies the failure category.
	Code Code

	// Op names the operation that failed ("create", "login", ...).
	Op string

	// Message is a human-readable description.
	Message string

	// RecordID identifies the affected record, when there is one.
	RecordID string

	// Detail carries category-specific data. For CodeConflict it holds the
	// conflict state object the caller needs to confirm.
	Detail any

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.RecordID != "" {
		msg += fmt.Sprintf(" (id=%s)", e.RecordID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error without a cause.
func New(code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Wrap creates an Error around a cause.
func Wrap(code Code, op, message string, err error) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// Validation creates a CodeValidation error.
func Validation(op, format string, args ...any) *Error {
	return New(CodeValidation, op, fmt.Sprintf(format, args...))
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return CodeOf(err) == CodeValidation }

// IsConflict reports whether err is a duplicate-key conflict.
func IsConflict(err error) bool { return CodeOf(err) == CodeConflict }

// IsStale reports whether err is a stale-resource failure.
func IsStale(err error) bool { return CodeOf(err) == CodeStale }

// IsAuthFailed reports whether err is an authentication failure.
func IsAuthFailed(err error) bool { return CodeOf(err) == CodeAuthFailed }

// IsTransport reports whether err is a transport-class failure.
func IsTransport(err error) bool { return CodeOf(err) == CodeTransport }

// DetailOf returns the Detail of the first *Error in err's chain.
func DetailOf(err error) (any, bool) {
	var e *Error
	if errors.As(err, &e) && e.Detail != nil {
		return e.Detail, true
	}
	return nil, false
}
