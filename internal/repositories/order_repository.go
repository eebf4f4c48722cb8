package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"canteen-backend/internal/models"
)

type OrderRepository struct {
	DB *pgxpool.Pool
}

func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{DB: db}
}

const orderColumns = `
	id, order_number, theater_id, channel, kiosk_type_id,
	COALESCE(customer_name, '') as customer_name, COALESCE(customer_phone, '') as customer_phone,
	subtotal, tax, service_charge, discount, total,
	COALESCE(payment_method, 'cash') as payment_method, payment_status,
	COALESCE(gateway_order_id, '') as gateway_order_id,
	COALESCE(gateway_payment_id, '') as gateway_payment_id,
	status, COALESCE(idempotency_key, '') as idempotency_key,
	COALESCE(created_by_user_id, 0) as created_by_user_id,
	created_at, updated_at
`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.TheaterID, &o.Channel, &o.KioskTypeID,
		&o.CustomerName, &o.CustomerPhone,
		&o.Subtotal, &o.Tax, &o.ServiceCharge, &o.Discount, &o.Total,
		&o.PaymentMethod, &o.PaymentStatus,
		&o.GatewayOrderID, &o.GatewayPaymentID,
		&o.Status, &o.IdempotencyKey, &o.CreatedByUserID,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Create persists the order, its items, and the idempotency record in one
// transaction. Order numbers come from one global sequence, so they are
// unique across all theaters and strictly increasing within each.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order, requestHash string) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return classify(err, "order")
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, "SELECT nextval('order_numbers')").Scan(&o.OrderNumber)
	if err != nil {
		return fmt.Errorf("failed to allocate order number: %w", classify(err, "order"))
	}

	query := `
		INSERT INTO orders (
			order_number, theater_id, channel, kiosk_type_id,
			customer_name, customer_phone,
			subtotal, tax, service_charge, discount, total,
			payment_method, payment_status, status, idempotency_key, created_by_user_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		o.OrderNumber, o.TheaterID, o.Channel, o.KioskTypeID,
		o.CustomerName, o.CustomerPhone,
		o.Subtotal, o.Tax, o.ServiceCharge, o.Discount, o.Total,
		o.PaymentMethod, o.PaymentStatus, o.Status, o.IdempotencyKey, o.CreatedByUserID).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return classify(err, "order")
	}

	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = o.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, combo_id, name, unit_price, quantity, tax_rate, total_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`, item.OrderID, item.ProductID, item.ComboID, item.Name,
			item.UnitPrice, item.Quantity, item.TaxRate, item.TotalPrice).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", classify(err, "order item"))
		}
	}

	if o.IdempotencyKey != "" {
		_, err = tx.Exec(ctx, `
			INSERT INTO idempotency_keys (theater_id, idem_key, request_hash, order_id)
			VALUES ($1, $2, $3, $4)
		`, o.TheaterID, o.IdempotencyKey, requestHash, o.ID)
		if err != nil {
			return classify(err, "idempotency key")
		}
	}

	return classify(tx.Commit(ctx), "order")
}

// IdempotencyRecord is a prior submission under the same key
type IdempotencyRecord struct {
	OrderID     int
	RequestHash string
}

// GetIdempotencyRecord returns the prior record for (theater, key), or nil
func (r *OrderRepository) GetIdempotencyRecord(ctx context.Context, theaterID int, key string) (*IdempotencyRecord, error) {
	var rec IdempotencyRecord
	err := r.DB.QueryRow(ctx,
		"SELECT order_id, request_hash FROM idempotency_keys WHERE theater_id = $1 AND idem_key = $2",
		theaterID, key).Scan(&rec.OrderID, &rec.RequestHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(err, "idempotency key")
	}
	return &rec, nil
}

func (r *OrderRepository) Get(ctx context.Context, id int) (*models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE id = $1"
	o, err := scanOrder(r.DB.QueryRow(ctx, query, id))
	if err != nil {
		return nil, classify(err, "order")
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// GetForTheater fetches an order and verifies tenant ownership
func (r *OrderRepository) GetForTheater(ctx context.Context, theaterID, id int) (*models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE id = $1 AND theater_id = $2"
	o, err := scanOrder(r.DB.QueryRow(ctx, query, id, theaterID))
	if err != nil {
		return nil, classify(err, "order")
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// GetByGatewayOrderID locates the order a gateway webhook refers to
func (r *OrderRepository) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE gateway_order_id = $1"
	o, err := scanOrder(r.DB.QueryRow(ctx, query, gatewayOrderID))
	if err != nil {
		return nil, classify(err, "order")
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, o *models.Order) error {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, combo_id, name, unit_price, quantity, tax_rate, total_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, o.ID)
	if err != nil {
		return classify(err, "order item")
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ComboID,
			&item.Name, &item.UnitPrice, &item.Quantity, &item.TaxRate, &item.TotalPrice); err != nil {
			return classify(err, "order item")
		}
		o.Items = append(o.Items, item)
	}
	return rows.Err()
}

func (r *OrderRepository) List(ctx context.Context, filter *models.OrderFilter) ([]*models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE theater_id = $1"
	args := []interface{}{filter.TheaterID}
	argNum := 2

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, filter.Status)
		argNum++
	}
	if filter.Channel != "" {
		query += fmt.Sprintf(" AND channel = $%d", argNum)
		args = append(args, filter.Channel)
		argNum++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argNum)
		args = append(args, *filter.Since)
		argNum++
	}
	if filter.Until != nil {
		query += fmt.Sprintf(" AND created_at < $%d", argNum)
		args = append(args, *filter.Until)
		argNum++
	}
	query += " ORDER BY order_number DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "order")
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, classify(err, "order")
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "order")
	}

	for _, o := range orders {
		if err := r.loadItems(ctx, o); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// TransitionStatus moves an order from one status to another atomically.
// Zero rows affected means the order was not in the expected state.
func (r *OrderRepository) TransitionStatus(ctx context.Context, id int, from, to models.OrderStatus) error {
	tag, err := r.DB.Exec(ctx,
		"UPDATE orders SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 AND status = $3",
		to, id, from)
	if err != nil {
		return classify(err, "order")
	}
	if tag.RowsAffected() == 0 {
		return models.NewPreconditionError("order status changed concurrently")
	}
	return nil
}

// MarkPaid records payment against an order
func (r *OrderRepository) MarkPaid(ctx context.Context, id int, method, gatewayPaymentID string) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET payment_status = $1, payment_method = $2, gateway_payment_id = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $4
	`, models.PaymentPaid, method, gatewayPaymentID, id)
	if err != nil {
		return classify(err, "order")
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("order")
	}
	return nil
}

// SetGatewayOrderID attaches the gateway-side order id after creation there
func (r *OrderRepository) SetGatewayOrderID(ctx context.Context, id int, gatewayOrderID string) error {
	tag, err := r.DB.Exec(ctx,
		"UPDATE orders SET gateway_order_id = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		gatewayOrderID, id)
	if err != nil {
		return classify(err, "order")
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("order")
	}
	return nil
}

// SetPaymentStatus updates just the payment state (webhook failure paths)
func (r *OrderRepository) SetPaymentStatus(ctx context.Context, id int, status models.PaymentStatus) error {
	tag, err := r.DB.Exec(ctx,
		"UPDATE orders SET payment_status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		status, id)
	if err != nil {
		return classify(err, "order")
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("order")
	}
	return nil
}

// CountByStatus returns order counts per status for a theater since a time,
// used by the ops dashboard.
func (r *OrderRepository) CountByStatus(ctx context.Context, theaterID int) (map[models.OrderStatus]int, error) {
	rows, err := r.DB.Query(ctx,
		"SELECT status, COUNT(*) FROM orders WHERE theater_id = $1 GROUP BY status", theaterID)
	if err != nil {
		return nil, classify(err, "order")
	}
	defer rows.Close()

	out := make(map[models.OrderStatus]int)
	for rows.Next() {
		var status models.OrderStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, classify(err, "order")
		}
		out[status] = count
	}
	return out, rows.Err()
}
