package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"canteen-backend/internal/models"
)

// ErrVersionConflict is returned when a compare-and-swap update loses the
// race. Callers re-read the month and retry.
var ErrVersionConflict = errors.New("stock month was modified concurrently")

type StockRepository struct {
	DB *pgxpool.Pool
}

func NewStockRepository(db *pgxpool.Pool) *StockRepository {
	return &StockRepository{DB: db}
}

const stockMonthColumns = `
	id, theater_id, product_id, ledger, year, month,
	old_stock, stock_details, closing_balance, total_invord_stock, version,
	created_at, updated_at
`

func scanStockMonth(row pgx.Row) (*models.StockMonth, error) {
	var sm models.StockMonth
	var details []byte
	err := row.Scan(
		&sm.ID, &sm.TheaterID, &sm.ProductID, &sm.Ledger, &sm.Year, &sm.Month,
		&sm.OldStock, &details, &sm.ClosingBalance, &sm.TotalInvordStock, &sm.Version,
		&sm.CreatedAt, &sm.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &sm.StockDetails); err != nil {
			return nil, fmt.Errorf("failed to decode stock details: %w", err)
		}
	}
	return &sm, nil
}

// GetMonth loads one monthly document, or nil when the month has no row yet
func (r *StockRepository) GetMonth(ctx context.Context, theaterID, productID int, ledger models.LedgerKind, year, month int) (*models.StockMonth, error) {
	query := "SELECT " + stockMonthColumns + `
		FROM stock_months
		WHERE theater_id = $1 AND product_id = $2 AND ledger = $3 AND year = $4 AND month = $5
	`
	sm, err := scanStockMonth(r.DB.QueryRow(ctx, query, theaterID, productID, ledger, year, month))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(err, "stock month")
	}
	return sm, nil
}

// GetLatestBefore returns the most recent month strictly earlier than
// (year, month), or nil when the product has no history yet. Carry-forward
// reads from here.
func (r *StockRepository) GetLatestBefore(ctx context.Context, theaterID, productID int, ledger models.LedgerKind, year, month int) (*models.StockMonth, error) {
	query := "SELECT " + stockMonthColumns + `
		FROM stock_months
		WHERE theater_id = $1 AND product_id = $2 AND ledger = $3
		  AND (year < $4 OR (year = $4 AND month < $5))
		ORDER BY year DESC, month DESC
		LIMIT 1
	`
	sm, err := scanStockMonth(r.DB.QueryRow(ctx, query, theaterID, productID, ledger, year, month))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(err, "stock month")
	}
	return sm, nil
}

// ListFrom returns all months at or after (year, month) in chronological
// order. Chain repair walks this list forward.
func (r *StockRepository) ListFrom(ctx context.Context, theaterID, productID int, ledger models.LedgerKind, year, month int) ([]*models.StockMonth, error) {
	query := "SELECT " + stockMonthColumns + `
		FROM stock_months
		WHERE theater_id = $1 AND product_id = $2 AND ledger = $3
		  AND (year > $4 OR (year = $4 AND month >= $5))
		ORDER BY year, month
	`
	rows, err := r.DB.Query(ctx, query, theaterID, productID, ledger, year, month)
	if err != nil {
		return nil, classify(err, "stock month")
	}
	defer rows.Close()

	var months []*models.StockMonth
	for rows.Next() {
		sm, err := scanStockMonth(rows)
		if err != nil {
			return nil, classify(err, "stock month")
		}
		months = append(months, sm)
	}
	return months, rows.Err()
}

// ListForTheater returns every monthly document of one ledger for a theater
// and period, across products. Reports read from here.
func (r *StockRepository) ListForTheater(ctx context.Context, theaterID int, ledger models.LedgerKind, year, month int) ([]*models.StockMonth, error) {
	query := "SELECT " + stockMonthColumns + `
		FROM stock_months
		WHERE theater_id = $1 AND ledger = $2 AND year = $3 AND month = $4
		ORDER BY product_id
	`
	rows, err := r.DB.Query(ctx, query, theaterID, ledger, year, month)
	if err != nil {
		return nil, classify(err, "stock month")
	}
	defer rows.Close()

	var months []*models.StockMonth
	for rows.Next() {
		sm, err := scanStockMonth(rows)
		if err != nil {
			return nil, classify(err, "stock month")
		}
		months = append(months, sm)
	}
	return months, rows.Err()
}

// Insert creates a new monthly document at version 1. A unique violation
// means another writer created the month first; callers re-read and retry.
func (r *StockRepository) Insert(ctx context.Context, sm *models.StockMonth) error {
	details, err := json.Marshal(sm.StockDetails)
	if err != nil {
		return models.NewInternalError("failed to encode stock details", err)
	}
	query := `
		INSERT INTO stock_months (
			theater_id, product_id, ledger, year, month,
			old_stock, stock_details, closing_balance, total_invord_stock, version
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
		RETURNING id, created_at, updated_at
	`
	err = r.DB.QueryRow(ctx, query,
		sm.TheaterID, sm.ProductID, sm.Ledger, sm.Year, sm.Month,
		sm.OldStock, details, sm.ClosingBalance, sm.TotalInvordStock).
		Scan(&sm.ID, &sm.CreatedAt, &sm.UpdatedAt)
	if err != nil {
		return classify(err, "stock month")
	}
	sm.Version = 1
	return nil
}

// UpdateCAS writes the document back only if the version still matches the
// one it was read at, then bumps it. Returns ErrVersionConflict on a lost
// race.
func (r *StockRepository) UpdateCAS(ctx context.Context, sm *models.StockMonth) error {
	details, err := json.Marshal(sm.StockDetails)
	if err != nil {
		return models.NewInternalError("failed to encode stock details", err)
	}
	query := `
		UPDATE stock_months
		SET old_stock = $1, stock_details = $2, closing_balance = $3,
		    total_invord_stock = $4, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $5 AND version = $6
	`
	tag, err := r.DB.Exec(ctx, query,
		sm.OldStock, details, sm.ClosingBalance, sm.TotalInvordStock, sm.ID, sm.Version)
	if err != nil {
		return classify(err, "stock month")
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	sm.Version++
	return nil
}

// DistinctProducts lists product ids that have any ledger history for a
// theater, used by the auto-expire sweep.
func (r *StockRepository) DistinctProducts(ctx context.Context, theaterID int, ledger models.LedgerKind) ([]int, error) {
	rows, err := r.DB.Query(ctx,
		"SELECT DISTINCT product_id FROM stock_months WHERE theater_id = $1 AND ledger = $2 ORDER BY product_id",
		theaterID, ledger)
	if err != nil {
		return nil, classify(err, "stock month")
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, classify(err, "stock month")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
