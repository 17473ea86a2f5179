// Package apperrors defines the error kinds surfaced at the HTTP boundary.
package apperrors

import (
	"errors"
	"fmt"
)

// ErrorType categorises a failure in the identification pipeline or the
// account surfaces around it.
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeRemoteService ErrorType = "remote_service"
	ErrorTypeNoMatch       ErrorType = "no_match"
	ErrorTypeUnauthorized  ErrorType = "unauthorized"
	ErrorTypeConflict      ErrorType = "conflict"
	ErrorTypeInternal      ErrorType = "internal"
)

// NoMatchMessage is shown when the identification service returns no candidates.
const NoMatchMessage = "No plant matches found"

// AppError is the structured error returned by the use cases.
type AppError struct {
	Type       ErrorType
	Message    string
	StatusCode int // remote status for ErrorTypeRemoteService, zero otherwise
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewValidationError reports bad or missing user input.
func NewValidationError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeValidation, Message: message, Cause: cause}
}

// NewStorageError reports that an upload could not be persisted.
func NewStorageError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeStorage, Message: message, Cause: cause}
}

// NewRemoteServiceError reports a failed call to the identification service.
func NewRemoteServiceError(statusCode int, message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeRemoteService, Message: message, StatusCode: statusCode, Cause: cause}
}

// NewNoMatchError reports an identification response without candidates.
func NewNoMatchError() *AppError {
	return &AppError{Type: ErrorTypeNoMatch, Message: NoMatchMessage}
}

// NewUnauthorizedError reports rejected credentials or sessions.
func NewUnauthorizedError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeUnauthorized, Message: message, Cause: cause}
}

// NewConflictError reports a uniqueness violation, e.g. a taken username.
func NewConflictError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeConflict, Message: message, Cause: cause}
}

// NewInternalError reports anything else.
func NewInternalError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeInternal, Message: message, Cause: cause}
}

// IsType reports whether any AppError in err's chain has the given type.
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// UserMessage returns the message meant for display, falling back to the
// raw error text for errors outside the taxonomy.
func UserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
