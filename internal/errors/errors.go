// Package errors provides the structured error taxonomy shared by services
// and the HTTP layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown      Code = "UNKNOWN"
	CodeInvalid      Code = "INVALID_INPUT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeForbidden    Code = "FORBIDDEN"
	CodeUnauthorized Code = "UNAUTHORIZED"

	// Hackathon creation and update.
	CodeInvalidDateRange        Code = "INVALID_DATE_RANGE"
	CodeInvalidDeadlineOrdering Code = "INVALID_DEADLINE_ORDERING"
	CodeDeadlineInPast          Code = "DEADLINE_IN_PAST"
	CodeStatusLocked            Code = "STATUS_LOCKED"

	// Registration.
	CodeCapacityExceeded  Code = "CAPACITY_EXCEEDED"
	CodeDeadlinePassed    Code = "DEADLINE_PASSED"
	CodeInactive          Code = "HACKATHON_INACTIVE"
	CodeAlreadyRegistered Code = "ALREADY_REGISTERED"
	CodeNotRegistered     Code = "NOT_REGISTERED"
	CodeAlreadyStarted    Code = "ALREADY_STARTED"

	// Accounts.
	CodeEmailTaken         Code = "EMAIL_TAKEN"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
)

// Error is a domain error with a kind, code and optional metadata.
type Error struct {
	Kind     Kind
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so sentinel comparisons work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates a domain error.
func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// WithMetadata returns a copy of e carrying the given key/value pairs.
func (e *Error) WithMetadata(kv ...string) *Error {
	out := *e
	out.Metadata = make(map[string]string, len(e.Metadata)+len(kv)/2)
	for k, v := range e.Metadata {
		out.Metadata[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out.Metadata[kv[i]] = kv[i+1]
	}
	return &out
}

// Validation creates a validation error with a human message.
func Validation(message string) *Error {
	return New(KindValidation, CodeInvalid, message)
}

// Validationf is Validation with formatting.
func Validationf(format string, args ...any) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

// NotFound creates a not found error for the named resource.
func NotFound(resource string) *Error {
	return New(KindNotFound, CodeNotFound, resource+" not found")
}

// Internal wraps an unexpected failure.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Code: CodeUnknown, Message: message, Cause: cause}
}

// KindOf extracts the kind of err; non-domain errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf extracts the code of err; non-domain errors are CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// HTTPStatus maps an error to the response status code.
// Registration rule violations are reported as 400 like the public API
// always has; account and status conflicts use 409.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		switch CodeOf(err) {
		case CodeEmailTaken, CodeStatusLocked:
			return http.StatusConflict
		}
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
