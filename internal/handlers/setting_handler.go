package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"canteen-backend/internal/middleware"
	"canteen-backend/internal/repositories"
	"canteen-backend/pkg/utils"
)

type SettingHandler struct {
	settings *repositories.SystemSettingRepository
}

func NewSettingHandler(settings *repositories.SystemSettingRepository) *SettingHandler {
	return &SettingHandler{settings: settings}
}

// theaterScope reads an optional ?theater_id=N; absent means platform-wide
func theaterScope(r *http.Request) *int {
	if v := r.URL.Query().Get("theater_id"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return &n
		}
	}
	return nil
}

// List returns settings, theater overrides merged over platform defaults
// GET /api/settings?theater_id=N
func (h *SettingHandler) List(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.List(r.Context(), theaterScope(r))
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, settings)
}

// Get resolves one key with theater-to-platform fallback
// GET /api/settings/{key}?theater_id=N
func (h *SettingHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	setting, err := h.settings.Get(r.Context(), theaterScope(r), key)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, setting)
}

// Update upserts a setting at platform or theater scope
// PUT /api/settings/{key}?theater_id=N
func (h *SettingHandler) Update(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	var req struct {
		SettingValue string `json:"setting_value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	if err := h.settings.Upsert(r.Context(), theaterScope(r), key, req.SettingValue, userID); err != nil {
		utils.Error(w, err)
		return
	}
	utils.Message(w, http.StatusOK, "setting updated")
}
