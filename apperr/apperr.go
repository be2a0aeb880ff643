package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInternal         = "internal"
	CodeNotFound         = "not_found"
	CodeBadRequest       = "bad_request"
	CodeValidation       = "validation"
	CodeUnauthorized     = "unauthorized"
	CodeForbidden        = "forbidden"
	CodeConflict         = "conflict"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeNotImplemented   = "not_implemented"
	CodePayloadTooLarge  = "payload_too_large"
	CodeUnavailable      = "unavailable"
	CodeClientClosed     = "client_closed"
)

// StatusClientClosedRequest is recorded for requests whose client went away
// before a response was written. It is never sent.
const StatusClientClosedRequest = 499

// Error represents a structured application error.
type Error struct {
	Code    string
	Status  int
	Message string
	Details string
	Cause   error
}

// New creates a new Error.
func New(code string, status int, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Status:  status,
		Message: message,
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

// Unwrap returns the root cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetails returns a copy of the error carrying client-visible details.
func (e *Error) WithDetails(details string) *Error {
	clone := *e
	clone.Details = details
	return &clone
}

// As extracts an *Error if present.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// Validation reports a request that does not match the declared operation shape.
func Validation(message string, cause error) *Error {
	return New(CodeValidation, http.StatusBadRequest, message, cause)
}

// Unauthorized reports a missing or invalid authenticated principal.
func Unauthorized(message string, cause error) *Error {
	return New(CodeUnauthorized, http.StatusUnauthorized, message, cause)
}

// BadRequest reports a request rejected by handler rules.
func BadRequest(message string, cause error) *Error {
	return New(CodeBadRequest, http.StatusBadRequest, message, cause)
}

// Forbidden reports an authenticated but disallowed request.
func Forbidden(message string, cause error) *Error {
	return New(CodeForbidden, http.StatusForbidden, message, cause)
}

// NotFound reports a missing entity or route.
func NotFound(message string, cause error) *Error {
	return New(CodeNotFound, http.StatusNotFound, message, cause)
}

// Conflict reports a write that lost against a concurrent change.
func Conflict(message string, cause error) *Error {
	return New(CodeConflict, http.StatusConflict, message, cause)
}

// MethodNotAllowed reports a known path hit with an undeclared method.
func MethodNotAllowed(message string) *Error {
	return New(CodeMethodNotAllowed, http.StatusMethodNotAllowed, message, nil)
}

// NotImplemented reports a declared operation without a bound handler.
func NotImplemented(message string) *Error {
	return New(CodeNotImplemented, http.StatusNotImplemented, message, nil)
}

// PayloadTooLarge reports a body over the configured limit.
func PayloadTooLarge(message string, cause error) *Error {
	return New(CodePayloadTooLarge, http.StatusRequestEntityTooLarge, message, cause)
}

// Internal reports an unexpected failure. The message is never shown to clients.
func Internal(message string, cause error) *Error {
	return New(CodeInternal, http.StatusInternalServerError, message, cause)
}

// Unavailable reports a server that cannot take the request right now.
func Unavailable(message string) *Error {
	return New(CodeUnavailable, http.StatusServiceUnavailable, message, nil)
}

// ClientClosed reports a request abandoned by its client.
func ClientClosed(message string, cause error) *Error {
	return New(CodeClientClosed, StatusClientClosedRequest, message, cause)
}
