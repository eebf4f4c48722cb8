package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TOTPRepository records 2FA verification attempts so step-up checks can be
// throttled per user and per source address
type TOTPRepository struct {
	DB *pgxpool.Pool
}

func NewTOTPRepository(db *pgxpool.Pool) *TOTPRepository {
	return &TOTPRepository{DB: db}
}

func (r *TOTPRepository) RecordAttempt(ctx context.Context, userID int, ipAddress string, success bool) error {
	_, err := r.DB.Exec(ctx,
		`INSERT INTO totp_verification_attempts (user_id, ip_address, success) VALUES ($1, $2, $3)`,
		userID, ipAddress, success)
	return classify(err, "totp attempt")
}

// RecentFailures counts failed attempts for a user inside the window
func (r *TOTPRepository) RecentFailures(ctx context.Context, userID int, window time.Duration) (int, error) {
	var count int
	err := r.DB.QueryRow(ctx,
		`SELECT COUNT(*) FROM totp_verification_attempts
		 WHERE user_id = $1 AND success = false AND created_at > $2`,
		userID, time.Now().Add(-window)).Scan(&count)
	if err != nil {
		return 0, classify(err, "totp attempt")
	}
	return count, nil
}

// RecentFailuresByIP counts failed attempts from one address inside the window
func (r *TOTPRepository) RecentFailuresByIP(ctx context.Context, ipAddress string, window time.Duration) (int, error) {
	var count int
	err := r.DB.QueryRow(ctx,
		`SELECT COUNT(*) FROM totp_verification_attempts
		 WHERE ip_address = $1 AND success = false AND created_at > $2`,
		ipAddress, time.Now().Add(-window)).Scan(&count)
	if err != nil {
		return 0, classify(err, "totp attempt")
	}
	return count, nil
}

// Purge drops attempts older than a day
func (r *TOTPRepository) Purge(ctx context.Context) error {
	_, err := r.DB.Exec(ctx,
		`DELETE FROM totp_verification_attempts WHERE created_at < NOW() - INTERVAL '24 hours'`)
	return classify(err, "totp attempt")
}
