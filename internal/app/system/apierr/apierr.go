// internal/app/system/apierr/apierr.go
package apierr

import (
	"errors"
	"net/http"
)

// Error is a domain error carrying the HTTP status it maps to and a
// human-readable message. Workflows return these; handlers render them as
// {err, status} JSON and abort the open transaction.
type Error struct {
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return http.StatusText(e.Status)
}

func (e *Error) Unwrap() error { return e.Cause }

// BadRequest signals invalid or missing input (400).
func BadRequest(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg}
}

// NotFound signals a referenced entity that does not exist (404).
func NotFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Message: msg}
}

// Conflict signals a duplicate assignment/name or exhausted capacity (409).
func Conflict(msg string) *Error {
	return &Error{Status: http.StatusConflict, Message: msg}
}

// Forbidden signals an authorization failure (403).
func Forbidden(msg string) *Error {
	return &Error{Status: http.StatusForbidden, Message: msg}
}

// Unauthorized signals a missing or invalid credential (401).
func Unauthorized(msg string) *Error {
	return &Error{Status: http.StatusUnauthorized, Message: msg}
}

// Internal wraps an unexpected error (500). The cause is logged server-side,
// never sent to the client.
func Internal(cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: "internal server error", Cause: cause}
}

// Wrap attaches a cause to a domain error without changing its status or
// message.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Status: e.Status, Message: e.Message, Cause: cause}
}

// StatusOf extracts the HTTP status for any error; unrecognized errors are
// internal.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// MessageOf extracts the client-visible message for any error.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Error()
	}
	return "internal server error"
}

// IsStatus reports whether err is a domain error with the given status.
func IsStatus(err error, status int) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Status == status
}
