// Package apperr defines the errors that cross the HTTP boundary.
package apperr

import (
	"net/http"

	"github.com/pkg/errors"
)

// Error is an error carrying the HTTP status it should be reported with.
type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error with the given status and message.
func New(code int, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a status and user-facing message to a cause.
func Wrap(err error, code int, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

var (
	ErrUnauthorized = New(http.StatusUnauthorized, "Unauthorized")
	ErrUserNotFound = New(http.StatusUnauthorized, "User not found")
	ErrForbidden    = New(http.StatusForbidden, "permission denied")
	ErrNotFound     = New(http.StatusNotFound, "not found")
	ErrUploadFailed = New(http.StatusBadGateway, "upload failed")
	ErrTooLarge     = New(http.StatusRequestEntityTooLarge, "file too large")
)

func BadRequest(msg string) *Error { return New(http.StatusBadRequest, msg) }
func NotFound(msg string) *Error   { return New(http.StatusNotFound, msg) }
func Forbidden(msg string) *Error  { return New(http.StatusForbidden, msg) }
func Conflict(msg string) *Error   { return New(http.StatusConflict, msg) }

// Status reports the HTTP status for err, 500 for anything unknown.
func Status(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Message returns the user-facing message for err. Unknown errors are not exposed.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return http.StatusText(http.StatusInternalServerError)
}
