package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"canteen-backend/internal/models"
)

type PrintJobRepository struct {
	DB *pgxpool.Pool
}

func NewPrintJobRepository(db *pgxpool.Pool) *PrintJobRepository {
	return &PrintJobRepository{DB: db}
}

const printJobColumns = `
	id, theater_id, order_id, order_number, COALESCE(printer_hint, '') as printer_hint,
	receipt, status, attempts, COALESCE(last_error, '') as last_error,
	next_attempt_at, delivered_at, created_at, updated_at
`

func scanPrintJob(row pgx.Row) (*models.PrintJob, error) {
	var j models.PrintJob
	err := row.Scan(
		&j.ID, &j.TheaterID, &j.OrderID, &j.OrderNumber, &j.PrinterHint,
		&j.Receipt, &j.Status, &j.Attempts, &j.LastError,
		&j.NextAttemptAt, &j.DeliveredAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *PrintJobRepository) Enqueue(ctx context.Context, j *models.PrintJob) error {
	query := `
		INSERT INTO print_jobs (theater_id, order_id, order_number, printer_hint, receipt, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, next_attempt_at, created_at, updated_at
	`
	err := r.DB.QueryRow(ctx, query,
		j.TheaterID, j.OrderID, j.OrderNumber, j.PrinterHint, j.Receipt, models.PrintQueued).
		Scan(&j.ID, &j.NextAttemptAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return classify(err, "print job")
	}
	j.Status = models.PrintQueued
	return nil
}

// Depth counts live jobs (queued or delivering) for a theater
func (r *PrintJobRepository) Depth(ctx context.Context, theaterID int) (int, error) {
	var depth int
	err := r.DB.QueryRow(ctx,
		"SELECT COUNT(*) FROM print_jobs WHERE theater_id = $1 AND status IN ($2, $3)",
		theaterID, models.PrintQueued, models.PrintDelivering).Scan(&depth)
	if err != nil {
		return 0, classify(err, "print job")
	}
	return depth, nil
}

// ClaimNext atomically takes the oldest due queued job for a theater and
// marks it delivering. FOR UPDATE SKIP LOCKED keeps concurrent dispatchers
// (or a restarted instance racing a draining one) off the same job. Returns
// nil when nothing is due.
func (r *PrintJobRepository) ClaimNext(ctx context.Context, theaterID int, now time.Time) (*models.PrintJob, error) {
	query := `
		UPDATE print_jobs
		SET status = $1, attempts = attempts + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = (
			SELECT id FROM print_jobs
			WHERE theater_id = $2 AND status = $3 AND next_attempt_at <= $4
			ORDER BY id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + printJobColumns
	j, err := scanPrintJob(r.DB.QueryRow(ctx, query,
		models.PrintDelivering, theaterID, models.PrintQueued, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(err, "print job")
	}
	return j, nil
}

func (r *PrintJobRepository) MarkDelivered(ctx context.Context, id int, at time.Time) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE print_jobs
		SET status = $1, delivered_at = $2, last_error = '', updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
	`, models.PrintDelivered, at, id)
	if err != nil {
		return classify(err, "print job")
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("print job")
	}
	return nil
}

// Requeue puts a job back for another attempt after the backoff window
func (r *PrintJobRepository) Requeue(ctx context.Context, id int, lastError string, nextAttempt time.Time) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE print_jobs
		SET status = $1, last_error = $2, next_attempt_at = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $4
	`, models.PrintQueued, lastError, nextAttempt, id)
	if err != nil {
		return classify(err, "print job")
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("print job")
	}
	return nil
}

func (r *PrintJobRepository) MarkFailed(ctx context.Context, id int, lastError string) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE print_jobs
		SET status = $1, last_error = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
	`, models.PrintFailed, lastError, id)
	if err != nil {
		return classify(err, "print job")
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("print job")
	}
	return nil
}

// ResetStuck returns delivering jobs to queued. Run at startup so jobs
// claimed by a previous instance that died mid-delivery are retried.
func (r *PrintJobRepository) ResetStuck(ctx context.Context) (int, error) {
	tag, err := r.DB.Exec(ctx,
		"UPDATE print_jobs SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE status = $2",
		models.PrintQueued, models.PrintDelivering)
	if err != nil {
		return 0, classify(err, "print job")
	}
	return int(tag.RowsAffected()), nil
}

// Retry re-queues a terminally failed job for a fresh round of attempts
func (r *PrintJobRepository) Retry(ctx context.Context, theaterID, id int, now time.Time) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE print_jobs
		SET status = $1, attempts = 0, last_error = '', next_attempt_at = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3 AND theater_id = $4 AND status = $5
	`, models.PrintQueued, now, id, theaterID, models.PrintFailed)
	if err != nil {
		return classify(err, "print job")
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("failed print job")
	}
	return nil
}

// QueueStatus summarizes one theater's queue for operators
func (r *PrintJobRepository) QueueStatus(ctx context.Context, theaterID int) (*models.PrintQueueStatus, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status IN ($2, $3)) as depth,
			COUNT(*) FILTER (WHERE status = $4) as failed,
			MAX(delivered_at) as last_success
		FROM print_jobs
		WHERE theater_id = $1
	`
	var st models.PrintQueueStatus
	st.TheaterID = theaterID
	err := r.DB.QueryRow(ctx, query, theaterID,
		models.PrintQueued, models.PrintDelivering, models.PrintFailed).
		Scan(&st.QueueDepth, &st.FailedJobs, &st.LastSuccessAt)
	if err != nil {
		return nil, classify(err, "print job")
	}
	return &st, nil
}

// TheatersWithQueued lists theaters that currently have due queued jobs
func (r *PrintJobRepository) TheatersWithQueued(ctx context.Context, now time.Time) ([]int, error) {
	rows, err := r.DB.Query(ctx,
		"SELECT DISTINCT theater_id FROM print_jobs WHERE status = $1 AND next_attempt_at <= $2",
		models.PrintQueued, now)
	if err != nil {
		return nil, classify(err, "print job")
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, classify(err, "print job")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListRecent returns the newest jobs for a theater, any status
func (r *PrintJobRepository) ListRecent(ctx context.Context, theaterID, limit int) ([]*models.PrintJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := "SELECT " + printJobColumns + `
		FROM print_jobs
		WHERE theater_id = $1
		ORDER BY id DESC
		LIMIT $2
	`
	rows, err := r.DB.Query(ctx, query, theaterID, limit)
	if err != nil {
		return nil, classify(err, "print job")
	}
	defer rows.Close()

	var jobs []*models.PrintJob
	for rows.Next() {
		j, err := scanPrintJob(rows)
		if err != nil {
			return nil, classify(err, "print job")
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
