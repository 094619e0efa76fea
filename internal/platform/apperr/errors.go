// Package apperr provides the structured domain error used across the
// service. Errors carry a machine-readable Code, compare equal under
// errors.Is when their codes match, and map onto HTTP statuses at the edge.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeInternal          Code = "INTERNAL"
	CodeUnavailable       Code = "UNAVAILABLE"
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeNotFound          Code = "NOT_FOUND"
	CodeCapacityExceeded  Code = "CAPACITY_EXCEEDED"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeProviderRequired  Code = "PROVIDER_REQUIRED"
	CodeDuplicateFeedback Code = "DUPLICATE_FEEDBACK"
	CodeNotEligible       Code = "NOT_ELIGIBLE"
)

// HTTPStatus returns the response status used for the code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	case CodeCapacityExceeded, CodeInvalidTransition, CodeDuplicateFeedback:
		return http.StatusConflict
	case CodeProviderRequired:
		return http.StatusUnprocessableEntity
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeNotEligible:
		return http.StatusForbidden
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf formats the message like fmt.Sprintf.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithMetadata creates an error with key/value context for the response body.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is checks. Only the code participates in matching.
var (
	ErrValidation        = New(CodeValidation, "validation failed")
	ErrNotFound          = New(CodeNotFound, "not found")
	ErrCapacityExceeded  = New(CodeCapacityExceeded, "slot unavailable")
	ErrInvalidTransition = New(CodeInvalidTransition, "invalid status transition")
	ErrUnauthorized      = New(CodeUnauthorized, "unauthorized")
	ErrForbidden         = New(CodeForbidden, "forbidden")
	ErrProviderRequired  = New(CodeProviderRequired, "provider required")
	ErrDuplicateFeedback = New(CodeDuplicateFeedback, "feedback already submitted")
	ErrNotEligible       = New(CodeNotEligible, "not eligible")
	ErrUnavailable       = New(CodeUnavailable, "temporarily unavailable")
)

// CodeOf extracts the code from err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Validation is shorthand for a CodeValidation error on a single field.
func Validation(field, message string) *Error {
	return WithMetadata(CodeValidation, message, map[string]string{"field": field})
}

// NotFound is shorthand for a missing entity of the given kind.
func NotFound(kind string) *Error {
	return New(CodeNotFound, kind+" not found")
}
