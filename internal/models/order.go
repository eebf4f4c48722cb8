package models

import "time"

// OrderChannel identifies where an order came from
type OrderChannel string

const (
	ChannelPOS    OrderChannel = "pos"
	ChannelKiosk  OrderChannel = "kiosk"
	ChannelOnline OrderChannel = "online"
)

// OrderStatus state machine:
// pending -> confirmed -> preparing -> ready -> {completed, served}
// any non-terminal state -> cancelled
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderCompleted OrderStatus = "completed"
	OrderServed    OrderStatus = "served"
	OrderCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderServed || s == OrderCancelled
}

// CanTransitionTo validates a single-step transition; skipping states is
// rejected by the order engine.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == OrderCancelled {
		return true
	}
	switch s {
	case OrderPending:
		return next == OrderConfirmed
	case OrderConfirmed:
		return next == OrderPreparing
	case OrderPreparing:
		return next == OrderReady
	case OrderReady:
		return next == OrderCompleted || next == OrderServed
	}
	return false
}

// PaymentStatus of an order
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type OrderItem struct {
	ID         int     `json:"id"`
	OrderID    int     `json:"order_id"`
	ProductID  int     `json:"product_id"`
	ComboID    *int    `json:"combo_id,omitempty"`
	Name       string  `json:"name"` // denormalized for receipts
	UnitPrice  float64 `json:"unit_price"`
	Quantity   int     `json:"quantity"`
	TaxRate    float64 `json:"tax_rate"`
	TotalPrice float64 `json:"total_price"`
}

type Order struct {
	ID          int          `json:"id"`
	OrderNumber int64        `json:"order_number"` // strictly increasing per theater
	TheaterID   int          `json:"theater_id"`
	Channel     OrderChannel `json:"channel"`
	KioskTypeID *int         `json:"kiosk_type_id,omitempty"`

	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`

	Items []OrderItem `json:"items"`

	Subtotal      float64 `json:"subtotal"`
	Tax           float64 `json:"tax"`
	ServiceCharge float64 `json:"service_charge"`
	Discount      float64 `json:"discount"`
	Total         float64 `json:"total"`

	PaymentMethod    string        `json:"payment_method"` // cash, card, upi, gateway
	PaymentStatus    PaymentStatus `json:"payment_status"`
	GatewayOrderID   string        `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string        `json:"gateway_payment_id,omitempty"`

	Status          OrderStatus `json:"status"`
	IdempotencyKey  string      `json:"-"`
	CreatedByUserID int         `json:"created_by_user_id"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// SubmitOrderRequest is the order-submission payload. Client totals are
// advisory; the engine recomputes pricing from the catalog.
type SubmitOrderRequest struct {
	TheaterID     int               `json:"theater_id"`
	Channel       OrderChannel      `json:"channel"`
	KioskTypeID   *int              `json:"kiosk_type_id"`
	CustomerName  string            `json:"customer_name"`
	CustomerPhone string            `json:"customer_phone"`
	Items         []SubmitOrderItem `json:"items"`
	PaymentMethod string            `json:"payment_method"`
	MarkPaid      bool              `json:"mark_paid"` // POS: cashier collected payment up front
	Discount      float64           `json:"discount"`
	ClientTotal   float64           `json:"client_total"` // cross-checked, never trusted
}

type SubmitOrderItem struct {
	ProductID int  `json:"product_id"`
	ComboID   *int `json:"combo_id"`
	Quantity  int  `json:"quantity"`
}

type TransitionOrderRequest struct {
	Status OrderStatus `json:"status"`
}

type OrderFilter struct {
	TheaterID int          `json:"theater_id"`
	Status    OrderStatus  `json:"status"`
	Channel   OrderChannel `json:"channel"`
	Since     *time.Time   `json:"since"`
	Until     *time.Time   `json:"until"`
	Limit     int          `json:"limit"`
	Offset    int          `json:"offset"`
}
