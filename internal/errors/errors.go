// Package errors defines the error responses of the xbase server: an HTTP
// status, a stable code clients can switch on and a message shown verbatim.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode is the machine readable "code" member of an error response.
type ErrorCode string

// Request errors.
const (
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrMissingField     ErrorCode = "MISSING_FIELD"
	ErrInvalidLocator   ErrorCode = "INVALID_LOCATOR"
	ErrBucketMismatch   ErrorCode = "BUCKET_MISMATCH"
	ErrUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrRateLimited      ErrorCode = "RATE_LIMITED"
)

// Object and server errors.
const (
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrConflict       ErrorCode = "CONFLICT"
	ErrStorageError   ErrorCode = "STORAGE_ERROR"
	ErrInternal       ErrorCode = "INTERNAL_ERROR"
	ErrNotImplemented ErrorCode = "NOT_IMPLEMENTED"
)

// ErrorWithStatus is an error rendered as a JSON error response.
type ErrorWithStatus interface {
	error
	StatusCode() int
	Code() ErrorCode
	// Message is the user visible message, without any wrapped cause.
	Message() string
	Details() map[string]any
}

// APIError implements ErrorWithStatus.
type APIError struct {
	statusCode int
	code       ErrorCode
	message    string
	details    map[string]any
	cause      error
}

// NewAPIError returns an error answered with statusCode.
func NewAPIError(statusCode int, code ErrorCode, message string) *APIError {
	return &APIError{statusCode: statusCode, code: code, message: message}
}

// WithDetail sets a member of the "details" object of the response.
func (e *APIError) WithDetail(key string, value any) *APIError {
	if e.details == nil {
		e.details = map[string]any{}
	}
	e.details[key] = value
	return e
}

// Wrap records the cause; it is logged but never sent to clients.
func (e *APIError) Wrap(err error) *APIError {
	e.cause = err
	return e
}

func (e *APIError) Error() string {
	if e.cause == nil || e.cause.Error() == e.message {
		return e.message
	}
	return fmt.Sprintf("%s: %v", e.message, e.cause)
}

// Message implements ErrorWithStatus.
func (e *APIError) Message() string { return e.message }

// StatusCode implements ErrorWithStatus.
func (e *APIError) StatusCode() int { return e.statusCode }

// Code implements ErrorWithStatus.
func (e *APIError) Code() ErrorCode { return e.code }

// Details implements ErrorWithStatus.
func (e *APIError) Details() map[string]any { return e.details }

func (e *APIError) Unwrap() error { return e.cause }

// NotFound is a 404 for the named resource.
func NotFound(resource string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrNotFound, resource+" not found")
}

// MissingField is a 400 for an absent request member.
func MissingField(name string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrMissingField, "Missing required field: "+name)
}

// InvalidLocator is a 400 for a locator that cannot be decomposed.
func InvalidLocator(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrInvalidLocator, message)
}

// BucketMismatch is a 400 for a locator naming a bucket that is not served.
func BucketMismatch(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrBucketMismatch, message)
}

// Unauthorized is a 401.
func Unauthorized() *APIError {
	return NewAPIError(http.StatusUnauthorized, ErrUnauthorized, "Unauthorized")
}

// Conflict is a 409 for an object that already exists.
func Conflict(err error) *APIError {
	return NewAPIError(http.StatusConflict, ErrConflict, err.Error()).Wrap(err)
}

// Storage is a 500 whose message is the storage failure message, so the
// client shows e.g. "disk full" as is.
func Storage(err error) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrStorageError, err.Error()).Wrap(err)
}

// InternalWithError is a 500 with a generic message; err is only logged.
func InternalWithError(message string, err error) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrInternal, message).Wrap(err)
}

// NotImplemented is a 501 for a feature the configured backend lacks.
func NotImplemented(feature string) *APIError {
	return NewAPIError(http.StatusNotImplemented, ErrNotImplemented, feature+" is not yet implemented")
}
