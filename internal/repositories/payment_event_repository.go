package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"canteen-backend/internal/models"
)

type PaymentEventRepository struct {
	DB *pgxpool.Pool
}

func NewPaymentEventRepository(db *pgxpool.Pool) *PaymentEventRepository {
	return &PaymentEventRepository{DB: db}
}

func (r *PaymentEventRepository) Insert(ctx context.Context, e *models.PaymentEvent) error {
	query := `
		INSERT INTO payment_events (order_id, theater_id, gateway_order_id, gateway_payment_id, event_type, amount, raw)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err := r.DB.QueryRow(ctx, query,
		e.OrderID, e.TheaterID, e.GatewayOrderID, e.GatewayPaymentID, e.EventType, e.Amount, e.Raw).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return classify(err, "payment event")
	}
	return nil
}

func (r *PaymentEventRepository) ListByOrder(ctx context.Context, orderID int) ([]*models.PaymentEvent, error) {
	query := `
		SELECT id, order_id, theater_id, COALESCE(gateway_order_id, ''), COALESCE(gateway_payment_id, ''),
		       event_type, amount, COALESCE(raw, ''), created_at
		FROM payment_events
		WHERE order_id = $1
		ORDER BY id
	`
	rows, err := r.DB.Query(ctx, query, orderID)
	if err != nil {
		return nil, classify(err, "payment event")
	}
	defer rows.Close()

	var events []*models.PaymentEvent
	for rows.Next() {
		var e models.PaymentEvent
		if err := rows.Scan(&e.ID, &e.OrderID, &e.TheaterID, &e.GatewayOrderID, &e.GatewayPaymentID,
			&e.EventType, &e.Amount, &e.Raw, &e.CreatedAt); err != nil {
			return nil, classify(err, "payment event")
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
