package http

import (
	"fmt"
	"net/http"
)

// AppError is an error with an HTTP status and a machine-readable code.
// Handlers wrap domain failures in one so AppErrorResponse can pick the
// transport status without inspecting messages.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError creates an application error. field may be empty when the
// failure is not tied to a single request field.
func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Field:   field,
		Message: message,
		Status:  status,
		Params:  make(map[string]interface{}),
	}
}

// WithParam attaches one key/value detail to the error.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError records the underlying cause. The cause stays out of the
// JSON body and is only visible through Error and Unwrap.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func statusError(code string, status int, message string) *AppError {
	return NewAppError(code, "", message, status)
}

// NotFoundError creates a 404 error.
func NotFoundError(message string) *AppError {
	return statusError("ERR_NOT_FOUND", http.StatusNotFound, message)
}

// NotFoundErrorf is NotFoundError with a format string.
func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return NotFoundError(fmt.Sprintf(format, a...))
}

// BadRequestError creates a 400 error.
func BadRequestError(message string) *AppError {
	return statusError("ERR_BAD_REQUEST", http.StatusBadRequest, message)
}

// InternalError creates a 500 error.
func InternalError(message string) *AppError {
	return statusError("ERR_INTERNAL", http.StatusInternalServerError, message)
}
