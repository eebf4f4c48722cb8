package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"canteen-backend/internal/models"
)

type UserRepository struct {
	DB *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (theater_id, name, email, phone, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id, created_at, updated_at
	`
	err := r.DB.QueryRow(ctx, query,
		u.TheaterID, u.Name, u.Email, u.Phone, u.PasswordHash, u.Role).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return classify(err, "user")
	}
	u.IsActive = true
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	query := `
		SELECT id, theater_id, name, email, COALESCE(phone, '') as phone,
		       password_hash, role, totp_enabled, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var u models.User
	err := r.DB.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.TheaterID, &u.Name, &u.Email, &u.Phone,
		&u.PasswordHash, &u.Role, &u.TOTPEnabled, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, classify(err, "user")
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, theater_id, name, email, COALESCE(phone, '') as phone,
		       password_hash, role, totp_enabled, is_active, created_at, updated_at
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`
	var u models.User
	err := r.DB.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.TheaterID, &u.Name, &u.Email, &u.Phone,
		&u.PasswordHash, &u.Role, &u.TOTPEnabled, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, classify(err, "user")
	}
	return &u, nil
}

// List returns users, scoped to one theater when theaterID > 0
func (r *UserRepository) List(ctx context.Context, theaterID int) ([]*models.User, error) {
	query := `
		SELECT id, theater_id, name, email, COALESCE(phone, '') as phone,
		       password_hash, role, totp_enabled, is_active, created_at, updated_at
		FROM users
	`
	args := []interface{}{}
	if theaterID > 0 {
		query += " WHERE theater_id = $1"
		args = append(args, theaterID)
	}
	query += " ORDER BY name"

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "user")
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.TheaterID, &u.Name, &u.Email, &u.Phone,
			&u.PasswordHash, &u.Role, &u.TOTPEnabled, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, classify(err, "user")
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Update(ctx context.Context, u *models.User) error {
	query := `
		UPDATE users
		SET name = $1, email = $2, phone = $3, role = $4, is_active = $5, updated_at = CURRENT_TIMESTAMP
		WHERE id = $6
	`
	tag, err := r.DB.Exec(ctx, query, u.Name, u.Email, u.Phone, u.Role, u.IsActive, u.ID)
	if err != nil {
		return classify(err, "user")
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("user")
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID int, passwordHash string) error {
	tag, err := r.DB.Exec(ctx,
		"UPDATE users SET password_hash = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		passwordHash, userID)
	if err != nil {
		return classify(err, "user")
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("user")
	}
	return nil
}

// GetTOTPSecret returns the stored TOTP secret, empty when 2FA is not set up
func (r *UserRepository) GetTOTPSecret(ctx context.Context, userID int) (string, error) {
	var secret string
	err := r.DB.QueryRow(ctx,
		"SELECT COALESCE(totp_secret, '') FROM users WHERE id = $1", userID).Scan(&secret)
	if err != nil {
		return "", classify(err, "user")
	}
	return secret, nil
}

// SetTOTPSecret stores a pending secret; enabled flips on first verified code
func (r *UserRepository) SetTOTPSecret(ctx context.Context, userID int, secret string, enabled bool) error {
	tag, err := r.DB.Exec(ctx,
		"UPDATE users SET totp_secret = $1, totp_enabled = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3",
		secret, enabled, userID)
	if err != nil {
		return fmt.Errorf("failed to update totp secret: %w", classify(err, "user"))
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("user")
	}
	return nil
}

func (r *UserRepository) Deactivate(ctx context.Context, id int) error {
	tag, err := r.DB.Exec(ctx,
		"UPDATE users SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP WHERE id = $1", id)
	if err != nil {
		return classify(err, "user")
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("user")
	}
	return nil
}
