package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"canteen-backend/internal/models"
)

type ProductRepository struct {
	DB *pgxpool.Pool
}

func NewProductRepository(db *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{DB: db}
}

const productColumns = `
	id, theater_id, category_id, kiosk_type_id, name,
	COALESCE(description, '') as description, COALESCE(image_url, '') as image_url,
	base_price, sale_price, tax_rate, gst_inclusive,
	track_stock, min_stock, max_stock, COALESCE(stock_unit, 'pcs') as stock_unit,
	is_active, is_available, created_at, updated_at
`

func scanProduct(row interface{ Scan(...interface{}) error }) (*models.Product, error) {
	var p models.Product
	err := row.Scan(
		&p.ID, &p.TheaterID, &p.CategoryID, &p.KioskTypeID, &p.Name,
		&p.Description, &p.ImageURL,
		&p.BasePrice, &p.SalePrice, &p.TaxRate, &p.GSTInclusive,
		&p.TrackStock, &p.MinStock, &p.MaxStock, &p.StockUnit,
		&p.IsActive, &p.IsAvailable, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (
			theater_id, category_id, kiosk_type_id, name, description, image_url,
			base_price, sale_price, tax_rate, gst_inclusive,
			track_stock, min_stock, max_stock, stock_unit, is_active, is_available
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, TRUE, TRUE)
		RETURNING id, created_at, updated_at
	`
	err := r.DB.QueryRow(ctx, query,
		p.TheaterID, p.CategoryID, p.KioskTypeID, p.Name, p.Description, p.ImageURL,
		p.BasePrice, p.SalePrice, p.TaxRate, p.GSTInclusive,
		p.TrackStock, p.MinStock, p.MaxStock, p.StockUnit).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return classify(err, "product")
	}
	p.IsActive = true
	p.IsAvailable = true
	return nil
}

func (r *ProductRepository) Get(ctx context.Context, id int) (*models.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE id = $1"
	p, err := scanProduct(r.DB.QueryRow(ctx, query, id))
	if err != nil {
		return nil, classify(err, "product")
	}
	return p, nil
}

// GetForTheater fetches a product and verifies it belongs to the theater
func (r *ProductRepository) GetForTheater(ctx context.Context, theaterID, id int) (*models.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE id = $1 AND theater_id = $2"
	p, err := scanProduct(r.DB.QueryRow(ctx, query, id, theaterID))
	if err != nil {
		return nil, classify(err, "product")
	}
	return p, nil
}

func (r *ProductRepository) List(ctx context.Context, filter *models.ProductFilter) ([]*models.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE theater_id = $1"
	args := []interface{}{filter.TheaterID}
	argNum := 2

	if filter.CategoryID > 0 {
		query += fmt.Sprintf(" AND category_id = $%d", argNum)
		args = append(args, filter.CategoryID)
		argNum++
	}
	if filter.KioskTypeID > 0 {
		query += fmt.Sprintf(" AND kiosk_type_id = $%d", argNum)
		args = append(args, filter.KioskTypeID)
		argNum++
	}
	if filter.Search != "" {
		query += fmt.Sprintf(" AND name ILIKE $%d", argNum)
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}
	if filter.ActiveOnly {
		query += " AND is_active = TRUE"
	}
	query += " ORDER BY name"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "product")
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, classify(err, "product")
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetByIDs loads a set of products in one query, keyed by id. Used by the
// order engine to price a cart without N round trips.
func (r *ProductRepository) GetByIDs(ctx context.Context, theaterID int, ids []int) (map[int]*models.Product, error) {
	if len(ids) == 0 {
		return map[int]*models.Product{}, nil
	}
	query := "SELECT " + productColumns + " FROM products WHERE theater_id = $1 AND id = ANY($2)"
	rows, err := r.DB.Query(ctx, query, theaterID, ids)
	if err != nil {
		return nil, classify(err, "product")
	}
	defer rows.Close()

	out := make(map[int]*models.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, classify(err, "product")
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *ProductRepository) Update(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products
		SET category_id = $1, kiosk_type_id = $2, name = $3, description = $4,
		    image_url = $5, base_price = $6, sale_price = $7, tax_rate = $8,
		    gst_inclusive = $9, track_stock = $10, min_stock = $11, max_stock = $12,
		    stock_unit = $13, is_active = $14, is_available = $15,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $16 AND theater_id = $17
	`
	tag, err := r.DB.Exec(ctx, query,
		p.CategoryID, p.KioskTypeID, p.Name, p.Description,
		p.ImageURL, p.BasePrice, p.SalePrice, p.TaxRate,
		p.GSTInclusive, p.TrackStock, p.MinStock, p.MaxStock,
		p.StockUnit, p.IsActive, p.IsAvailable, p.ID, p.TheaterID)
	if err != nil {
		return classify(err, "product")
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("product")
	}
	return nil
}

// SetAvailability flips the temporary menu flag without touching pricing
func (r *ProductRepository) SetAvailability(ctx context.Context, theaterID, id int, available bool) error {
	tag, err := r.DB.Exec(ctx,
		"UPDATE products SET is_available = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 AND theater_id = $3",
		available, id, theaterID)
	if err != nil {
		return classify(err, "product")
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("product")
	}
	return nil
}

func (r *ProductRepository) Deactivate(ctx context.Context, theaterID, id int) error {
	tag, err := r.DB.Exec(ctx,
		"UPDATE products SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP WHERE id = $1 AND theater_id = $2",
		id, theaterID)
	if err != nil {
		return classify(err, "product")
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("product")
	}
	return nil
}
