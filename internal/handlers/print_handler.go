package handlers

import (
	"net/http"
	"strconv"

	"canteen-backend/internal/services"
	"canteen-backend/pkg/utils"
)

type PrintHandler struct {
	dispatcher *services.PrintDispatcher
	orders     *services.OrderService
}

func NewPrintHandler(dispatcher *services.PrintDispatcher, orders *services.OrderService) *PrintHandler {
	return &PrintHandler{dispatcher: dispatcher, orders: orders}
}

// QueueStatus reports queue depth, failures and agent connectivity
// GET /api/theaters/{id}/print/status
func (h *PrintHandler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	status, err := h.dispatcher.QueueStatus(r.Context(), theaterID)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, status)
}

// ListJobs returns recent print jobs, newest first
// GET /api/theaters/{id}/print/jobs
func (h *PrintHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	jobs, err := h.dispatcher.ListRecentJobs(r.Context(), theaterID, limit)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, jobs)
}

// RetryJob requeues a failed job with a fresh attempt budget
// POST /api/theaters/{id}/print/jobs/{jobId}/retry
func (h *PrintHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	jobID, ok := pathInt(r, "jobId")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid job id")
		return
	}
	if err := h.dispatcher.RetryJob(r.Context(), theaterID, jobID); err != nil {
		utils.Error(w, err)
		return
	}
	utils.Message(w, http.StatusOK, "job requeued")
}

// Reprint enqueues a fresh receipt for an existing order
// POST /api/theaters/{id}/orders/{orderId}/print
func (h *PrintHandler) Reprint(w http.ResponseWriter, r *http.Request) {
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
	if err := h.dispatcher.EnqueueOrder(r.Context(), order, r.URL.Query().Get("printer")); err != nil {
		utils.Error(w, err)
		return
	}
	utils.Message(w, http.StatusAccepted, "receipt queued")
}
