package api

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a failure that carries an HTTP status code. Any error
// implementing it is treated by the pipeline as an expected application
// failure and routed through exception recovery by its status code.
type StatusError interface {
	error
	StatusCode() int
}

// Exception is the framework's built-in StatusError.
type Exception struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

var _ StatusError = (*Exception)(nil)

// Error implements the error interface.
func (e *Exception) Error() string {
	if e.Message == "" {
		return http.StatusText(e.StatusCode())
	}
	return e.Message
}

// StatusCode returns the exception status. Values outside the valid HTTP
// range resolve to 500.
func (e *Exception) StatusCode() int {
	return normalizeStatus(e.Status)
}

// WithStatus overrides the status code of the exception.
func (e *Exception) WithStatus(code int) *Exception {
	e.Status = code
	return e
}

// NewException creates an Exception with the given status and message.
func NewException(status int, message string) *Exception {
	return &Exception{Status: status, Message: message}
}

// NotFound creates a 404 Exception.
func NotFound(message string) *Exception {
	return NewException(http.StatusNotFound, message)
}

// ServerError creates a 500 Exception.
func ServerError(message string) *Exception {
	return NewException(http.StatusInternalServerError, message)
}

// Abort returns an Exception for the given status. An empty message falls
// back to the standard status text.
func Abort(status int, message string) error {
	return NewException(status, message)
}

// Abortf is Abort with a formatted message.
func Abortf(status int, format string, args ...any) error {
	return NewException(status, fmt.Sprintf(format, args...))
}

// StatusFromError extracts the status code of the first StatusError in
// err's chain. The boolean is false when err carries no status.
func StatusFromError(err error) (int, bool) {
	var se StatusError
	if !errors.As(err, &se) {
		return 0, false
	}
	return normalizeStatus(se.StatusCode()), true
}

func normalizeStatus(code int) int {
	if code < 100 || code > 599 {
		return http.StatusInternalServerError
	}
	return code
}
