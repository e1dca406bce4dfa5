package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// DatabaseErrorMessage describes storage related failures.
	DatabaseErrorMessage = "database operation failed"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// CompletionErrorMessage describes completion provider failures.
	CompletionErrorMessage = "completion service failed"
)

// Kind classifies an Error into the handful of categories the engine
// distinguishes when deciding whether a turn can continue.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindExternalService
	KindDatabase
)

// Error wraps an underlying error with a kind, HTTP status and safe message.
type Error struct {
	Err     error
	Kind    Kind
	Status  int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the target matches the underlying error or the Error itself.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to Error or the wrapped error in a chain.
func (e *Error) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**Error); ok {
		*t = e
		return true
	}
	return false
}

// New creates a new Error with the provided information.
func New(err error, status int, message string) *Error {
	return &Error{
		Err:     err,
		Kind:    KindInternal,
		Status:  status,
		Message: message,
	}
}

// Validation marks a malformed mutation request. Not retried, surfaced to
// the caller.
func Validation(format string, args ...any) *Error {
	return &Error{
		Err:     fmt.Errorf(format, args...),
		Kind:    KindValidation,
		Status:  http.StatusUnprocessableEntity,
		Message: "validation failed",
	}
}

// NotFound marks a lookup for an unknown record.
func NotFound(err error, what string) *Error {
	return &Error{
		Err:     err,
		Kind:    KindNotFound,
		Status:  http.StatusNotFound,
		Message: what + " not found",
	}
}

// ExternalService marks a failure of an outside collaborator. Handlers
// recover from these locally and must never surface them as a failed turn.
func ExternalService(err error, message string) *Error {
	return &Error{
		Err:     err,
		Kind:    KindExternalService,
		Status:  http.StatusBadGateway,
		Message: message,
	}
}

// Database marks a storage failure; the turn aborts and the caller is
// expected to redeliver the inbound message.
func Database(err error) *Error {
	return &Error{
		Err:     err,
		Kind:    KindDatabase,
		Status:  http.StatusInternalServerError,
		Message: DatabaseErrorMessage,
	}
}

// KindOf extracts the kind from an error chain, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }
