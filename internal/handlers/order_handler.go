package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"canteen-backend/internal/middleware"
	"canteen-backend/internal/models"
	"canteen-backend/internal/services"
	"canteen-backend/pkg/utils"
)

type OrderHandler struct {
	orders *services.OrderService
}

func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Submit creates an order. The Idempotency-Key header makes retries safe:
// the same key returns the original order instead of double-charging stock.
// POST /api/orders
func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, _ := middleware.GetUserIDFromContext(r.Context())
	idemKey := r.Header.Get("Idempotency-Key")

	order, err := h.orders.Submit(r.Context(), &req, idemKey, userID)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusCreated, order)
}

// Get returns one order scoped to a theater
// GET /api/theaters/{id}/orders/{orderId}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	order, err := h.orders.Get(r.Context(), theaterID, orderID)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, order)
}

// List returns orders filtered by status, channel and date range
// GET /api/theaters/{id}/orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}

	filter := &models.OrderFilter{TheaterID: theaterID, Limit: 50}
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		filter.Status = models.OrderStatus(s)
	}
	if c := q.Get("channel"); c != "" {
		filter.Channel = models.OrderChannel(c)
	}
	if v := q.Get("since"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.Since = &t
		}
	}
	if v := q.Get("until"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			end := t.Add(24 * time.Hour)
			filter.Until = &end
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	orders, err := h.orders.List(r.Context(), filter)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, orders)
}

// Transition advances the order state machine by one step
// PATCH /api/theaters/{id}/orders/{orderId}/status
func (h *OrderHandler) Transition(w http.ResponseWriter, r *http.Request) {
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
	var req models.TransitionOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	order, err := h.orders.Transition(r.Context(), theaterID, orderID, req.Status)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, order)
}

// MarkPaid records payment collection for an order
// POST /api/theaters/{id}/orders/{orderId}/pay
func (h *OrderHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
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
	var req struct {
		Method string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	order, err := h.orders.MarkPaid(r.Context(), theaterID, orderID, req.Method)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, order)
}
