package models

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		err  *AppError
		want int
	}{
		{NewValidationError("bad input", nil), http.StatusBadRequest},
		{NewNotFoundError("order"), http.StatusNotFound},
		{NewConflictError("duplicate"), http.StatusConflict},
		{NewPreconditionError("insufficient stock"), http.StatusPreconditionFailed},
		{NewRateLimitedError("slow down"), http.StatusTooManyRequests},
		{NewUnavailableError("db down", nil), http.StatusServiceUnavailable},
		{NewInternalError("boom", nil), http.StatusInternalServerError},
		{&AppError{Kind: ErrUnauthenticated, Message: "no token"}, http.StatusUnauthorized},
		{&AppError{Kind: ErrUnauthorized, Message: "admin only"}, http.StatusForbidden},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.StatusCode(), "kind %s", tc.err.Kind)
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, NewUnavailableError("db down", nil).Retryable())
	assert.True(t, NewRateLimitedError("slow down").Retryable())
	assert.False(t, NewConflictError("duplicate").Retryable())
	assert.False(t, NewValidationError("bad input", nil).Retryable())
}

func TestNotFoundMessageNamesEntity(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: order not found", NewNotFoundError("order").Error())
}

func TestAsAppErrorUnwrapsChain(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := NewUnavailableError("store not reachable", cause)

	appErr := AsAppError(wrapped)
	assert.Equal(t, ErrServiceUnavailable, appErr.Kind)
	assert.True(t, errors.Is(appErr, cause))
}

func TestAsAppErrorWrapsUnknownAsInternal(t *testing.T) {
	plain := errors.New("something odd")
	appErr := AsAppError(plain)
	assert.Equal(t, ErrInternal, appErr.Kind)
	assert.Equal(t, http.StatusInternalServerError, appErr.StatusCode())
	assert.True(t, errors.Is(appErr, plain))
}
