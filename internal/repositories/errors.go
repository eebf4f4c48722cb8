package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"canteen-backend/internal/models"
)

// classify maps driver errors onto application error kinds so services and
// handlers never look at SQLSTATE codes themselves.
func classify(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return models.NewNotFoundError(entity)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.NewUnavailableError("store operation timed out", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.NewConflictError(entity + " already exists")
		case "23503": // foreign_key_violation
			return models.NewValidationError("referenced "+entity+" does not exist", nil)
		case "40001", "40P01": // serialization failure, deadlock
			return models.NewUnavailableError("store contention, retry", err)
		}
		// Connection-class errors (08xxx) are retryable
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08" {
			return models.NewUnavailableError("store not reachable", err)
		}
	}
	return models.NewInternalError("store error", err)
}
