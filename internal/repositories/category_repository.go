package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"canteen-backend/internal/models"
)

type CategoryRepository struct {
	DB *pgxpool.Pool
}

func NewCategoryRepository(db *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{DB: db}
}

func (r *CategoryRepository) Create(ctx context.Context, c *models.Category) error {
	query := `
		INSERT INTO categories (theater_id, name, type, sort_order, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, created_at, updated_at
	`
	err := r.DB.QueryRow(ctx, query, c.TheaterID, c.Name, c.Type, c.SortOrder).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return classify(err, "category")
	}
	c.IsActive = true
	return nil
}

func (r *CategoryRepository) Get(ctx context.Context, id int) (*models.Category, error) {
	query := `
		SELECT id, theater_id, name, type, sort_order, is_active, created_at, updated_at
		FROM categories
		WHERE id = $1
	`
	var c models.Category
	err := r.DB.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.TheaterID, &c.Name, &c.Type, &c.SortOrder, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, classify(err, "category")
	}
	return &c, nil
}

// ListWithCounts returns a theater's categories with live product counts.
// Counts are computed here, never stored.
func (r *CategoryRepository) ListWithCounts(ctx context.Context, theaterID int, activeOnly bool) ([]*models.CategoryWithItems, error) {
	query := `
		SELECT c.id, c.theater_id, c.name, c.type, c.sort_order, c.is_active,
		       c.created_at, c.updated_at,
		       COUNT(p.id) FILTER (WHERE p.is_active) as item_count
		FROM categories c
		LEFT JOIN products p ON p.category_id = c.id
		WHERE c.theater_id = $1
	`
	if activeOnly {
		query += " AND c.is_active = TRUE"
	}
	query += `
		GROUP BY c.id
		ORDER BY c.sort_order, c.name
	`

	rows, err := r.DB.Query(ctx, query, theaterID)
	if err != nil {
		return nil, classify(err, "category")
	}
	defer rows.Close()

	var categories []*models.CategoryWithItems
	for rows.Next() {
		var c models.CategoryWithItems
		if err := rows.Scan(&c.ID, &c.TheaterID, &c.Name, &c.Type, &c.SortOrder,
			&c.IsActive, &c.CreatedAt, &c.UpdatedAt, &c.ItemCount); err != nil {
			return nil, classify(err, "category")
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}

func (r *CategoryRepository) Update(ctx context.Context, c *models.Category) error {
	query := `
		UPDATE categories
		SET name = $1, type = $2, sort_order = $3, is_active = $4, updated_at = CURRENT_TIMESTAMP
		WHERE id = $5
	`
	tag, err := r.DB.Exec(ctx, query, c.Name, c.Type, c.SortOrder, c.IsActive, c.ID)
	if err != nil {
		return classify(err, "category")
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("category")
	}
	return nil
}

// Delete removes a category only when no products still reference it
func (r *CategoryRepository) Delete(ctx context.Context, id int) error {
	var count int
	err := r.DB.QueryRow(ctx,
		"SELECT COUNT(*) FROM products WHERE category_id = $1", id).Scan(&count)
	if err != nil {
		return classify(err, "category")
	}
	if count > 0 {
		return models.NewConflictError("category still has products")
	}

	tag, err := r.DB.Exec(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		return classify(err, "category")
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("category")
	}
	return nil
}
