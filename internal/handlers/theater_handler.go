package handlers

import (
	"encoding/json"
	"net/http"

	"canteen-backend/internal/middleware"
	"canteen-backend/internal/models"
	"canteen-backend/internal/services"
	"canteen-backend/pkg/utils"
)

type TheaterHandler struct {
	theaters *services.TheaterService
	users    *services.UserService
}

func NewTheaterHandler(theaters *services.TheaterService, users *services.UserService) *TheaterHandler {
	return &TheaterHandler{theaters: theaters, users: users}
}

// Create registers a new theater
// POST /api/theaters
func (h *TheaterHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTheaterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	theater, err := h.theaters.Create(r.Context(), &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusCreated, theater)
}

// List returns all theaters
// GET /api/theaters?active=true
func (h *TheaterHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	theaters, err := h.theaters.List(r.Context(), activeOnly)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, theaters)
}

// Get returns one theater
// GET /api/theaters/{id}
func (h *TheaterHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	theater, err := h.theaters.Get(r.Context(), id)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, theater)
}

// Update changes a theater; deactivation also stops its agent
// PUT /api/theaters/{id}
func (h *TheaterHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	var req models.UpdateTheaterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	theater, err := h.theaters.Update(r.Context(), id, &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, theater)
}

// ProvisionAgent stores agent credentials for a theater. Step-up: the admin
// must present a fresh TOTP code even with a valid session.
// PUT /api/theaters/{id}/agent/credentials
func (h *TheaterHandler) ProvisionAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	var req models.ProvisionAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, _ := middleware.GetUserIDFromContext(r.Context())
	if err := h.users.VerifyTOTP(r.Context(), userID, req.TOTPCode, clientAddr(r)); err != nil {
		utils.Error(w, err)
		return
	}

	creds := &models.AgentCredentials{
		Username: req.Username,
		Password: req.Password,
		PIN:      req.PIN,
		Label:    req.Label,
		Enabled:  req.Enabled,
	}
	if err := h.theaters.ProvisionAgent(r.Context(), id, creds); err != nil {
		utils.Error(w, err)
		return
	}
	utils.Message(w, http.StatusOK, "agent credentials saved")
}
