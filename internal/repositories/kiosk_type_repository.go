package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"canteen-backend/internal/models"
)

type KioskTypeRepository struct {
	DB *pgxpool.Pool
}

func NewKioskTypeRepository(db *pgxpool.Pool) *KioskTypeRepository {
	return &KioskTypeRepository{DB: db}
}

func (r *KioskTypeRepository) Create(ctx context.Context, k *models.KioskType) error {
	query := `
		INSERT INTO kiosk_types (theater_id, name, description, printer_hint, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, created_at, updated_at
	`
	err := r.DB.QueryRow(ctx, query, k.TheaterID, k.Name, k.Description, k.PrinterHint).
		Scan(&k.ID, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return classify(err, "kiosk type")
	}
	k.IsActive = true
	return nil
}

func (r *KioskTypeRepository) Get(ctx context.Context, id int) (*models.KioskType, error) {
	query := `
		SELECT id, theater_id, name, COALESCE(description, ''), COALESCE(printer_hint, ''),
		       is_active, created_at, updated_at
		FROM kiosk_types
		WHERE id = $1
	`
	var k models.KioskType
	err := r.DB.QueryRow(ctx, query, id).Scan(
		&k.ID, &k.TheaterID, &k.Name, &k.Description, &k.PrinterHint,
		&k.IsActive, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return nil, classify(err, "kiosk type")
	}
	return &k, nil
}

func (r *KioskTypeRepository) List(ctx context.Context, theaterID int) ([]*models.KioskType, error) {
	query := `
		SELECT id, theater_id, name, COALESCE(description, ''), COALESCE(printer_hint, ''),
		       is_active, created_at, updated_at
		FROM kiosk_types
		WHERE theater_id = $1
		ORDER BY name
	`
	rows, err := r.DB.Query(ctx, query, theaterID)
	if err != nil {
		return nil, classify(err, "kiosk type")
	}
	defer rows.Close()

	var kioskTypes []*models.KioskType
	for rows.Next() {
		var k models.KioskType
		if err := rows.Scan(&k.ID, &k.TheaterID, &k.Name, &k.Description, &k.PrinterHint,
			&k.IsActive, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, classify(err, "kiosk type")
		}
		kioskTypes = append(kioskTypes, &k)
	}
	return kioskTypes, rows.Err()
}

func (r *KioskTypeRepository) Update(ctx context.Context, k *models.KioskType) error {
	query := `
		UPDATE kiosk_types
		SET name = $1, description = $2, printer_hint = $3, is_active = $4, updated_at = CURRENT_TIMESTAMP
		WHERE id = $5 AND theater_id = $6
	`
	tag, err := r.DB.Exec(ctx, query,
		k.Name, k.Description, k.PrinterHint, k.IsActive, k.ID, k.TheaterID)
	if err != nil {
		return classify(err, "kiosk type")
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("kiosk type")
	}
	return nil
}
