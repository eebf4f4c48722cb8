package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"canteen-backend/internal/models"
)

type SystemSettingRepository struct {
	DB *pgxpool.Pool
}

func NewSystemSettingRepository(db *pgxpool.Pool) *SystemSettingRepository {
	return &SystemSettingRepository{DB: db}
}

// Get resolves a setting for a theater, falling back to the platform-wide
// row (theater_id IS NULL) when the theater has no override. Returns nil
// when the key exists nowhere.
func (r *SystemSettingRepository) Get(ctx context.Context, theaterID *int, key string) (*models.SystemSetting, error) {
	query := `
		SELECT id, theater_id, setting_key, setting_value, COALESCE(description, ''),
		       updated_at, COALESCE(updated_by_user_id, 0)
		FROM system_settings
		WHERE setting_key = $1 AND (theater_id = $2 OR theater_id IS NULL)
		ORDER BY theater_id NULLS LAST
		LIMIT 1
	`
	var s models.SystemSetting
	err := r.DB.QueryRow(ctx, query, key, theaterID).Scan(
		&s.ID, &s.TheaterID, &s.SettingKey, &s.SettingValue,
		&s.Description, &s.UpdatedAt, &s.UpdatedByUserID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, classify(err, "setting")
	}
	return &s, nil
}

func (r *SystemSettingRepository) List(ctx context.Context, theaterID *int) ([]*models.SystemSetting, error) {
	query := `
		SELECT id, theater_id, setting_key, setting_value, COALESCE(description, ''),
		       updated_at, COALESCE(updated_by_user_id, 0)
		FROM system_settings
		WHERE theater_id = $1 OR ($1::int IS NULL AND theater_id IS NULL)
		ORDER BY setting_key
	`
	rows, err := r.DB.Query(ctx, query, theaterID)
	if err != nil {
		return nil, classify(err, "setting")
	}
	defer rows.Close()

	var settings []*models.SystemSetting
	for rows.Next() {
		var s models.SystemSetting
		if err := rows.Scan(&s.ID, &s.TheaterID, &s.SettingKey, &s.SettingValue,
			&s.Description, &s.UpdatedAt, &s.UpdatedByUserID); err != nil {
			return nil, classify(err, "setting")
		}
		settings = append(settings, &s)
	}
	return settings, rows.Err()
}

// Upsert writes a setting value for a theater (or platform-wide when nil)
func (r *SystemSettingRepository) Upsert(ctx context.Context, theaterID *int, key, value string, updatedBy int) error {
	query := `
		INSERT INTO system_settings (theater_id, setting_key, setting_value, updated_by_user_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (COALESCE(theater_id, 0), setting_key) DO UPDATE SET
			setting_value = EXCLUDED.setting_value,
			updated_by_user_id = EXCLUDED.updated_by_user_id,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := r.DB.Exec(ctx, query, theaterID, key, value, updatedBy)
	if err != nil {
		return classify(err, "setting")
	}
	return nil
}
