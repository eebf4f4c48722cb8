package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canteen-backend/internal/models"
)

func kindOf(t *testing.T, err error) models.ErrKind {
	t.Helper()
	require.Error(t, err)
	return models.AsAppError(err).Kind
}

func TestClassifyNil(t *testing.T) {
	assert.NoError(t, classify(nil, "order"))
}

func TestClassifyNoRows(t *testing.T) {
	err := classify(pgx.ErrNoRows, "order")
	assert.Equal(t, models.ErrNotFound, kindOf(t, err))
	assert.Contains(t, err.Error(), "order not found")
}

func TestClassifyContextErrors(t *testing.T) {
	assert.Equal(t, models.ErrServiceUnavailable, kindOf(t, classify(context.DeadlineExceeded, "order")))
	assert.Equal(t, models.ErrServiceUnavailable, kindOf(t, classify(context.Canceled, "order")))
}

func TestClassifySQLStates(t *testing.T) {
	cases := []struct {
		code string
		want models.ErrKind
	}{
		{"23505", models.ErrConflict},
		{"23503", models.ErrValidation},
		{"40001", models.ErrServiceUnavailable},
		{"40P01", models.ErrServiceUnavailable},
		{"08006", models.ErrServiceUnavailable},
		{"22P02", models.ErrInternal},
	}
	for _, tc := range cases {
		err := classify(&pgconn.PgError{Code: tc.code}, "product")
		assert.Equal(t, tc.want, kindOf(t, err), "sqlstate %s", tc.code)
	}
}

func TestClassifyUnknownIsInternal(t *testing.T) {
	err := classify(errors.New("driver hiccup"), "product")
	appErr := models.AsAppError(err)
	assert.Equal(t, models.ErrInternal, appErr.Kind)
	assert.False(t, appErr.Retryable())
}
