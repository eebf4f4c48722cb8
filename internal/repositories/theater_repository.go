package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"canteen-backend/internal/models"
)

type TheaterRepository struct {
	DB *pgxpool.Pool
}

func NewTheaterRepository(db *pgxpool.Pool) *TheaterRepository {
	return &TheaterRepository{DB: db}
}

func (r *TheaterRepository) Create(ctx context.Context, t *models.Theater) error {
	query := `
		INSERT INTO theaters (name, code, address, is_active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, created_at, updated_at
	`
	err := r.DB.QueryRow(ctx, query, t.Name, t.Code, t.Address).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return classify(err, "theater")
	}
	t.IsActive = true
	return nil
}

func (r *TheaterRepository) Get(ctx context.Context, id int) (*models.Theater, error) {
	query := `
		SELECT id, name, code, COALESCE(address, '') as address, is_active, created_at, updated_at
		FROM theaters
		WHERE id = $1
	`
	var t models.Theater
	err := r.DB.QueryRow(ctx, query, id).
		Scan(&t.ID, &t.Name, &t.Code, &t.Address, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, classify(err, "theater")
	}
	return &t, nil
}

func (r *TheaterRepository) List(ctx context.Context, activeOnly bool) ([]*models.Theater, error) {
	query := `
		SELECT id, name, code, COALESCE(address, '') as address, is_active, created_at, updated_at
		FROM theaters
	`
	if activeOnly {
		query += " WHERE is_active = TRUE"
	}
	query += " ORDER BY name"

	rows, err := r.DB.Query(ctx, query)
	if err != nil {
		return nil, classify(err, "theater")
	}
	defer rows.Close()

	var theaters []*models.Theater
	for rows.Next() {
		var t models.Theater
		if err := rows.Scan(&t.ID, &t.Name, &t.Code, &t.Address, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, classify(err, "theater")
		}
		theaters = append(theaters, &t)
	}
	return theaters, rows.Err()
}

func (r *TheaterRepository) Update(ctx context.Context, t *models.Theater) error {
	query := `
		UPDATE theaters
		SET name = $1, address = $2, is_active = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $4
	`
	tag, err := r.DB.Exec(ctx, query, t.Name, t.Address, t.IsActive, t.ID)
	if err != nil {
		return classify(err, "theater")
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("theater")
	}
	return nil
}

// Deactivate soft-disables a theater; its agent is stopped by the caller
func (r *TheaterRepository) Deactivate(ctx context.Context, id int) error {
	tag, err := r.DB.Exec(ctx,
		"UPDATE theaters SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP WHERE id = $1", id)
	if err != nil {
		return classify(err, "theater")
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("theater")
	}
	return nil
}

// SetAgentCredentials upserts the per-theater agent credentials
func (r *TheaterRepository) SetAgentCredentials(ctx context.Context, c *models.AgentCredentials) error {
	query := `
		INSERT INTO agent_credentials (theater_id, username, password, pin, label, enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (theater_id) DO UPDATE SET
			username = EXCLUDED.username,
			password = EXCLUDED.password,
			pin = EXCLUDED.pin,
			label = EXCLUDED.label,
			enabled = EXCLUDED.enabled,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := r.DB.Exec(ctx, query,
		c.TheaterID, c.Username, c.Password, c.PIN, c.Label, c.Enabled)
	if err != nil {
		return fmt.Errorf("failed to save agent credentials: %w", classify(err, "agent credentials"))
	}
	return nil
}

// GetAgentCredentials returns the stored credentials for a theater's agent,
// or nil when none are provisioned.
func (r *TheaterRepository) GetAgentCredentials(ctx context.Context, theaterID int) (*models.AgentCredentials, error) {
	query := `
		SELECT theater_id, username, password, COALESCE(pin, ''), COALESCE(label, ''), enabled
		FROM agent_credentials
		WHERE theater_id = $1
	`
	var c models.AgentCredentials
	err := r.DB.QueryRow(ctx, query, theaterID).
		Scan(&c.TheaterID, &c.Username, &c.Password, &c.PIN, &c.Label, &c.Enabled)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, classify(err, "agent credentials")
	}
	return &c, nil
}

// ListAgentCredentials returns credentials for all enabled agents of active
// theaters, used to build the on-disk agent config file.
func (r *TheaterRepository) ListAgentCredentials(ctx context.Context) ([]*models.AgentCredentials, error) {
	query := `
		SELECT c.theater_id, c.username, c.password, COALESCE(c.pin, ''), COALESCE(c.label, ''), c.enabled
		FROM agent_credentials c
		JOIN theaters t ON t.id = c.theater_id
		WHERE t.is_active = TRUE
		ORDER BY c.theater_id
	`
	rows, err := r.DB.Query(ctx, query)
	if err != nil {
		return nil, classify(err, "agent credentials")
	}
	defer rows.Close()

	var creds []*models.AgentCredentials
	for rows.Next() {
		var c models.AgentCredentials
		if err := rows.Scan(&c.TheaterID, &c.Username, &c.Password, &c.PIN, &c.Label, &c.Enabled); err != nil {
			return nil, classify(err, "agent credentials")
		}
		creds = append(creds, &c)
	}
	return creds, rows.Err()
}
