package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"canteen-backend/internal/models"
	"canteen-backend/internal/repositories"
	"canteen-backend/internal/services"
	"canteen-backend/pkg/utils"
)

type PaymentHandler struct {
	razorpay *services.RazorpayService
	orders   *services.OrderService
	events   *repositories.PaymentEventRepository
}

func NewPaymentHandler(razorpay *services.RazorpayService, orders *services.OrderService,
	events *repositories.PaymentEventRepository) *PaymentHandler {
	return &PaymentHandler{razorpay: razorpay, orders: orders, events: events}
}

// Status reports whether online payments are configured
// GET /api/payment/status
func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	utils.JSON(w, http.StatusOK, map[string]bool{"enabled": h.razorpay.Enabled()})
}

// Verify settles an order from the checkout callback. The signature binds
// the gateway order to the payment, so a forged payment id cannot settle.
// POST /api/payment/verify
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RazorpayOrderID   string `json:"razorpay_order_id"`
		RazorpayPaymentID string `json:"razorpay_payment_id"`
		RazorpaySignature string `json:"razorpay_signature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" {
		utils.ErrorStatus(w, http.StatusBadRequest, "missing required fields")
		return
	}

	if !h.razorpay.VerifyPaymentSignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		log.Printf("[Razorpay] invalid payment signature for gateway order %s", req.RazorpayOrderID)
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid payment signature")
		return
	}

	order, err := h.orders.SettleGatewayPayment(r.Context(), req.RazorpayOrderID, req.RazorpayPaymentID, true)
	if err != nil {
		utils.Error(w, err)
		return
	}
	h.recordEvent(r, order, "payment.captured", nil)
	utils.JSON(w, http.StatusOK, order)
}

// Webhook processes Razorpay server-to-server events. Always acknowledges
// with 200 after signature verification so the gateway does not retry known
// failures forever.
// POST /api/payment/webhook
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "failed to read body")
		return
	}

	signature := r.Header.Get("X-Razorpay-Signature")
	if !h.razorpay.VerifyWebhookSignature(body, signature) {
		log.Printf("[Razorpay] invalid webhook signature")
		utils.ErrorStatus(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var payload struct {
		Event   string `json:"event"`
		Payload struct {
			Payment struct {
				Entity struct {
					ID      string `json:"id"`
					OrderID string `json:"order_id"`
					Amount  int64  `json:"amount"` // paise
				} `json:"entity"`
			} `json:"payment"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	log.Printf("[Razorpay] webhook %s for gateway order %s", payload.Event, payload.Payload.Payment.Entity.OrderID)

	switch payload.Event {
	case "payment.captured", "payment.failed":
		captured := payload.Event == "payment.captured"
		order, err := h.orders.SettleGatewayPayment(r.Context(),
			payload.Payload.Payment.Entity.OrderID,
			payload.Payload.Payment.Entity.ID,
			captured)
		if err != nil {
			// Acknowledge anyway; an unknown gateway order is not retryable
			log.Printf("[Razorpay] webhook settle failed: %v", err)
		} else {
			h.recordEvent(r, order, payload.Event, body)
		}
	default:
		// Unhandled event types are acknowledged and dropped
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// ListOrderEvents returns the gateway audit trail for one order
// GET /api/theaters/{id}/orders/{orderId}/payment-events
func (h *PaymentHandler) ListOrderEvents(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	orderID, ok := pathInt(r, "orderId")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid order id")
		return
	}
	// Scope check before exposing events
	if _, err := h.orders.Get(r.Context(), theaterID, orderID); err != nil {
		utils.Error(w, err)
		return
	}
	events, err := h.events.ListByOrder(r.Context(), orderID)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, events)
}

func (h *PaymentHandler) recordEvent(r *http.Request, order *models.Order, eventType string, raw []byte) {
	event := &models.PaymentEvent{
		OrderID:          order.ID,
		TheaterID:        order.TheaterID,
		GatewayOrderID:   order.GatewayOrderID,
		GatewayPaymentID: order.GatewayPaymentID,
		EventType:        eventType,
		Amount:           order.Total,
		Raw:              string(raw),
	}
	if err := h.events.Insert(r.Context(), event); err != nil {
		log.Printf("[Razorpay] failed to record payment event for order %d: %v", order.ID, err)
	}
}
