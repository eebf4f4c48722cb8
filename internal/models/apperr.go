package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrKind classifies an application error into an HTTP-mappable category
type ErrKind string

const (
	ErrValidation         ErrKind = "VALIDATION"
	ErrNotFound           ErrKind = "NOT_FOUND"
	ErrConflict           ErrKind = "CONFLICT"
	ErrPreconditionFailed ErrKind = "PRECONDITION_FAILED"
	ErrUnauthenticated    ErrKind = "UNAUTHENTICATED"
	ErrUnauthorized       ErrKind = "UNAUTHORIZED"
	ErrRateLimited        ErrKind = "RATE_LIMITED"
	ErrServiceUnavailable ErrKind = "SERVICE_UNAVAILABLE"
	ErrInternal           ErrKind = "INTERNAL"
)

// AppError is the error type surfaced through the response envelope.
// Retryable errors (ServiceUnavailable, RateLimited) tell the client to back
// off and resubmit; everything else is final for the given request.
type AppError struct {
	Kind    ErrKind           `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"` // field -> problem, for validation errors
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.cause }

// StatusCode maps the error kind to an HTTP status
func (e *AppError) StatusCode() int {
	switch e.Kind {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict:
		return http.StatusConflict
	case ErrPreconditionFailed:
		return http.StatusPreconditionFailed
	case ErrUnauthenticated:
		return http.StatusUnauthorized
	case ErrUnauthorized:
		return http.StatusForbidden
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may retry the same request
func (e *AppError) Retryable() bool {
	return e.Kind == ErrServiceUnavailable || e.Kind == ErrRateLimited
}

func NewValidationError(message string, fields map[string]string) *AppError {
	return &AppError{Kind: ErrValidation, Message: message, Fields: fields}
}

func NewNotFoundError(entity string) *AppError {
	return &AppError{Kind: ErrNotFound, Message: entity + " not found"}
}

func NewConflictError(message string) *AppError {
	return &AppError{Kind: ErrConflict, Message: message}
}

func NewPreconditionError(message string) *AppError {
	return &AppError{Kind: ErrPreconditionFailed, Message: message}
}

func NewRateLimitedError(message string) *AppError {
	return &AppError{Kind: ErrRateLimited, Message: message}
}

func NewUnavailableError(message string, cause error) *AppError {
	return &AppError{Kind: ErrServiceUnavailable, Message: message, cause: cause}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{Kind: ErrInternal, Message: message, cause: cause}
}

// AsAppError extracts an *AppError from an error chain, wrapping unknown
// errors as Internal so handlers always have a status code to write.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{Kind: ErrInternal, Message: "internal error", cause: err}
}
