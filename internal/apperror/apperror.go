// Package apperror defines the error taxonomy shared by the voting,
// acceptance and reputation components. Every error surfaced to a caller
// carries a stable Kind so handlers can map it without string matching.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes errors.
type Kind string

const (
	// KindUnauthorized means no verified actor was supplied.
	KindUnauthorized Kind = "UNAUTHORIZED"

	// KindForbidden means the actor may not perform this specific mutation.
	KindForbidden Kind = "FORBIDDEN"

	// KindNotFound means the target entity does not exist.
	KindNotFound Kind = "NOT_FOUND"

	// KindInvalidArgument means a malformed target type, polarity or id.
	KindInvalidArgument Kind = "INVALID_ARGUMENT"

	// KindConflict means a state-machine precondition was violated.
	KindConflict Kind = "CONFLICT"

	// KindInternal means a storage or transaction failure.
	KindInternal Kind = "INTERNAL"
)

// Error is the concrete error type returned by the engine.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Op names the operation that failed, e.g. "votes.CastVote".
	Op string

	// Message is safe to show to API clients.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error without a cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap creates an Error around a cause.
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func Unauthorized(op string) *Error {
	return New(KindUnauthorized, op, "User not authenticated")
}

func Forbidden(op, message string) *Error {
	return New(KindForbidden, op, message)
}

func NotFound(op, message string) *Error {
	return New(KindNotFound, op, message)
}

func InvalidArgument(op, message string) *Error {
	return New(KindInvalidArgument, op, message)
}

func Conflict(op, message string) *Error {
	return New(KindConflict, op, message)
}

func Internal(op string, err error) *Error {
	return Wrap(KindInternal, op, "Internal server error", err)
}

// KindOf returns the Kind of err, or KindInternal when err carries none.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Ensure returns err unchanged when it already carries a Kind and wraps it
// as Internal otherwise. nil stays nil.
func Ensure(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Internal(op, err)
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// MessageOf returns the client-safe message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "Internal server error"
}

// HTTPStatus maps an error to its response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
