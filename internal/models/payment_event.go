package models

import "time"

// PaymentEvent records a gateway callback (Razorpay webhook) against an
// online-channel order. Events are append-only for audit.
type PaymentEvent struct {
	ID               int       `json:"id"`
	OrderID          int       `json:"order_id"`
	TheaterID        int       `json:"theater_id"`
	GatewayOrderID   string    `json:"gateway_order_id"`
	GatewayPaymentID string    `json:"gateway_payment_id"`
	EventType        string    `json:"event_type"` // payment.captured, payment.failed, refund.processed
	Amount           float64   `json:"amount"`
	Raw              string    `json:"raw"` // original webhook payload
	CreatedAt        time.Time `json:"created_at"`
}
