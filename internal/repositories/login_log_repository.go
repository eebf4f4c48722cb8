package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"canteen-backend/internal/models"
)

// LoginLogRepository keeps the staff sign-in audit trail
type LoginLogRepository struct {
	DB *pgxpool.Pool
}

func NewLoginLogRepository(db *pgxpool.Pool) *LoginLogRepository {
	return &LoginLogRepository{DB: db}
}

// Record writes a sign-in row and returns its id
func (r *LoginLogRepository) Record(ctx context.Context, userID int, ipAddress, userAgent string) (int, error) {
	var id int
	err := r.DB.QueryRow(ctx,
		`INSERT INTO login_logs (user_id, login_time, ip_address, user_agent)
		 VALUES ($1, NOW(), $2, $3) RETURNING id`,
		userID, ipAddress, userAgent).Scan(&id)
	if err != nil {
		return 0, classify(err, "login log")
	}
	return id, nil
}

// CloseLatest stamps logout_time on the user's most recent open session
func (r *LoginLogRepository) CloseLatest(ctx context.Context, userID int) error {
	_, err := r.DB.Exec(ctx,
		`UPDATE login_logs SET logout_time = NOW()
		 WHERE id = (
		     SELECT id FROM login_logs
		     WHERE user_id = $1 AND logout_time IS NULL
		     ORDER BY login_time DESC LIMIT 1
		 )`, userID)
	return classify(err, "login log")
}

// List returns the most recent sign-ins, newest first
func (r *LoginLogRepository) List(ctx context.Context, limit int) ([]models.LoginLog, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT l.id, l.user_id, u.email, l.login_time, l.logout_time,
		        COALESCE(l.ip_address, ''), COALESCE(l.user_agent, '')
		 FROM login_logs l
		 JOIN users u ON u.id = l.user_id
		 ORDER BY l.login_time DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, classify(err, "login log")
	}
	defer rows.Close()

	logs := []models.LoginLog{}
	for rows.Next() {
		var l models.LoginLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.UserEmail, &l.LoginTime,
			&l.LogoutTime, &l.IPAddress, &l.UserAgent); err != nil {
			return nil, classify(err, "login log")
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
