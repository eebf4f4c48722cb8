package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"canteen-backend/internal/models"
	"canteen-backend/internal/services"
	"canteen-backend/pkg/utils"
)

type StockHandler struct {
	ledger *services.LedgerService
}

func NewStockHandler(ledger *services.LedgerService) *StockHandler {
	return &StockHandler{ledger: ledger}
}

func ledgerKind(r *http.Request) (models.LedgerKind, bool) {
	switch models.LedgerKind(mux.Vars(r)["ledger"]) {
	case models.LedgerTheater:
		return models.LedgerTheater, true
	case models.LedgerCafe:
		return models.LedgerCafe, true
	}
	return "", false
}

func yearMonth(r *http.Request) (int, int, bool) {
	year, err1 := strconv.Atoi(mux.Vars(r)["year"])
	month, err2 := strconv.Atoi(mux.Vars(r)["month"])
	if err1 != nil || err2 != nil || year < 2000 || month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, month, true
}

// AddEntry appends a stock movement; the month is located from the entry date
// POST /api/theaters/{id}/stock/{productId}/{ledger}/entries
func (h *StockHandler) AddEntry(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	productID, ok := pathInt(r, "productId")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid product id")
		return
	}
	ledger, ok := ledgerKind(r)
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "ledger must be theater or cafe")
		return
	}

	var entry models.StockEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	month, err := h.ledger.AddEntry(r.Context(), &models.AddStockEntryRequest{
		TheaterID: theaterID,
		ProductID: productID,
		Ledger:    ledger,
		Entry:     entry,
	})
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusCreated, month)
}

// Snapshot returns the month with carry-forward rows filled in through today
// GET /api/theaters/{id}/stock/{productId}/{ledger}/{year}/{month}
func (h *StockHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	productID, ok := pathInt(r, "productId")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid product id")
		return
	}
	ledger, ok := ledgerKind(r)
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "ledger must be theater or cafe")
		return
	}
	year, month, ok := yearMonth(r)
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid year or month")
		return
	}

	snapshot, err := h.ledger.MonthlySnapshot(r.Context(), theaterID, productID, ledger, year, month)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, snapshot)
}

// UpdateEntry replaces one real entry by its index within the month
// PUT /api/theaters/{id}/stock/{productId}/{ledger}/{year}/{month}/entries/{index}
func (h *StockHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	productID, ok := pathInt(r, "productId")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid product id")
		return
	}
	ledger, ok := ledgerKind(r)
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "ledger must be theater or cafe")
		return
	}
	year, month, ok := yearMonth(r)
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid year or month")
		return
	}
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil || index < 0 {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid entry index")
		return
	}

	var entry models.StockEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.ledger.UpdateEntry(r.Context(), theaterID, productID, ledger, year, month, index, entry)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, updated)
}

// DeleteEntry removes one real entry by index
// DELETE /api/theaters/{id}/stock/{productId}/{ledger}/{year}/{month}/entries/{index}
func (h *StockHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	productID, ok := pathInt(r, "productId")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid product id")
		return
	}
	ledger, ok := ledgerKind(r)
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "ledger must be theater or cafe")
		return
	}
	year, month, ok := yearMonth(r)
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid year or month")
		return
	}
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil || index < 0 {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid entry index")
		return
	}

	updated, err := h.ledger.DeleteEntry(r.Context(), theaterID, productID, ledger, year, month, index)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, updated)
}

// Current returns the live balance for a product in one ledger
// GET /api/theaters/{id}/stock/{productId}/{ledger}/current
func (h *StockHandler) Current(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	productID, ok := pathInt(r, "productId")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid product id")
		return
	}
	ledger, ok := ledgerKind(r)
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "ledger must be theater or cafe")
		return
	}

	current, err := h.ledger.GetCurrent(r.Context(), theaterID, productID, ledger)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, current)
}
