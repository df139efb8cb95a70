// Package apperr defines errors that carry an HTTP status.
package apperr

import (
	"errors"
	"net/http"
)

// Error is an error with an associated response status.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode returns the response status for e.
func (e *Error) StatusCode() int { return e.Status }

// New returns an Error with the given status and message.
func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Wrap attaches a status and client-facing message to err.
func Wrap(err error, status int, message string) *Error {
	return &Error{Status: status, Message: message, Err: err}
}

func BadRequest(message string) *Error   { return New(http.StatusBadRequest, message) }
func Unauthorized(message string) *Error { return New(http.StatusUnauthorized, message) }
func NotFound(message string) *Error     { return New(http.StatusNotFound, message) }

type statusCoder interface {
	StatusCode() int
}

// StatusOf resolves the response status carried by err, or 500 when none is set.
func StatusOf(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		if status := sc.StatusCode(); status >= 400 && status <= 599 {
			return status
		}
	}
	return http.StatusInternalServerError
}
