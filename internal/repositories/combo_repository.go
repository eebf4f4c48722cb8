package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"canteen-backend/internal/models"
)

type ComboRepository struct {
	DB *pgxpool.Pool
}

func NewComboRepository(db *pgxpool.Pool) *ComboRepository {
	return &ComboRepository{DB: db}
}

func (r *ComboRepository) Create(ctx context.Context, c *models.Combo) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return classify(err, "combo")
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO combos (theater_id, name, description, image_url,
		                    actual_price, current_price, tax_rate, gst_inclusive, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		c.TheaterID, c.Name, c.Description, c.ImageURL,
		c.ActualPrice, c.CurrentPrice, c.TaxRate, c.GSTInclusive).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return classify(err, "combo")
	}

	for i := range c.Items {
		item := &c.Items[i]
		item.ComboID = c.ID
		err = tx.QueryRow(ctx,
			"INSERT INTO combo_items (combo_id, product_id, quantity) VALUES ($1, $2, $3) RETURNING id",
			item.ComboID, item.ProductID, item.Quantity).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to insert combo item: %w", classify(err, "combo item"))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(err, "combo")
	}
	c.IsActive = true
	return nil
}

func (r *ComboRepository) Get(ctx context.Context, id int) (*models.Combo, error) {
	query := `
		SELECT id, theater_id, name, COALESCE(description, ''), COALESCE(image_url, ''),
		       actual_price, current_price, tax_rate, gst_inclusive, is_active,
		       created_at, updated_at
		FROM combos
		WHERE id = $1
	`
	var c models.Combo
	err := r.DB.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.TheaterID, &c.Name, &c.Description, &c.ImageURL,
		&c.ActualPrice, &c.CurrentPrice, &c.TaxRate, &c.GSTInclusive, &c.IsActive,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, classify(err, "combo")
	}

	items, err := r.loadItems(ctx, []int{c.ID})
	if err != nil {
		return nil, err
	}
	c.Items = items[c.ID]
	return &c, nil
}

func (r *ComboRepository) List(ctx context.Context, theaterID int, activeOnly bool) ([]*models.Combo, error) {
	query := `
		SELECT id, theater_id, name, COALESCE(description, ''), COALESCE(image_url, ''),
		       actual_price, current_price, tax_rate, gst_inclusive, is_active,
		       created_at, updated_at
		FROM combos
		WHERE theater_id = $1
	`
	if activeOnly {
		query += " AND is_active = TRUE"
	}
	query += " ORDER BY name"

	rows, err := r.DB.Query(ctx, query, theaterID)
	if err != nil {
		return nil, classify(err, "combo")
	}
	defer rows.Close()

	var combos []*models.Combo
	var ids []int
	for rows.Next() {
		var c models.Combo
		if err := rows.Scan(&c.ID, &c.TheaterID, &c.Name, &c.Description, &c.ImageURL,
			&c.ActualPrice, &c.CurrentPrice, &c.TaxRate, &c.GSTInclusive, &c.IsActive,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, classify(err, "combo")
		}
		combos = append(combos, &c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "combo")
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, c := range combos {
		c.Items = items[c.ID]
	}
	return combos, nil
}

func (r *ComboRepository) loadItems(ctx context.Context, comboIDs []int) (map[int][]models.ComboItem, error) {
	out := make(map[int][]models.ComboItem)
	if len(comboIDs) == 0 {
		return out, nil
	}
	rows, err := r.DB.Query(ctx,
		"SELECT id, combo_id, product_id, quantity FROM combo_items WHERE combo_id = ANY($1) ORDER BY id",
		comboIDs)
	if err != nil {
		return nil, classify(err, "combo item")
	}
	defer rows.Close()

	for rows.Next() {
		var item models.ComboItem
		if err := rows.Scan(&item.ID, &item.ComboID, &item.ProductID, &item.Quantity); err != nil {
			return nil, classify(err, "combo item")
		}
		out[item.ComboID] = append(out[item.ComboID], item)
	}
	return out, rows.Err()
}

func (r *ComboRepository) Update(ctx context.Context, c *models.Combo) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return classify(err, "combo")
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE combos
		SET name = $1, description = $2, image_url = $3, actual_price = $4,
		    current_price = $5, tax_rate = $6, gst_inclusive = $7, is_active = $8,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $9 AND theater_id = $10
	`
	tag, err := tx.Exec(ctx, query,
		c.Name, c.Description, c.ImageURL, c.ActualPrice,
		c.CurrentPrice, c.TaxRate, c.GSTInclusive, c.IsActive, c.ID, c.TheaterID)
	if err != nil {
		return classify(err, "combo")
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("combo")
	}

	// Items are replaced wholesale on update
	if c.Items != nil {
		if _, err := tx.Exec(ctx, "DELETE FROM combo_items WHERE combo_id = $1", c.ID); err != nil {
			return classify(err, "combo item")
		}
		for i := range c.Items {
			item := &c.Items[i]
			item.ComboID = c.ID
			err = tx.QueryRow(ctx,
				"INSERT INTO combo_items (combo_id, product_id, quantity) VALUES ($1, $2, $3) RETURNING id",
				item.ComboID, item.ProductID, item.Quantity).Scan(&item.ID)
			if err != nil {
				return classify(err, "combo item")
			}
		}
	}

	return classify(tx.Commit(ctx), "combo")
}

func (r *ComboRepository) Deactivate(ctx context.Context, theaterID, id int) error {
	tag, err := r.DB.Exec(ctx,
		"UPDATE combos SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP WHERE id = $1 AND theater_id = $2",
		id, theaterID)
	if err != nil {
		return classify(err, "combo")
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("combo")
	}
	return nil
}

// GetActiveForTheater is the order-engine path: only active combos are
// sellable, and a missing row means the cart is stale.
func (r *ComboRepository) GetActiveForTheater(ctx context.Context, theaterID, id int) (*models.Combo, error) {
	c, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.TheaterID != theaterID || !c.IsActive {
		return nil, models.NewNotFoundError("combo")
	}
	return c, nil
}
