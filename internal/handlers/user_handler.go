package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"canteen-backend/internal/middleware"
	"canteen-backend/internal/models"
	"canteen-backend/internal/services"
	"canteen-backend/pkg/utils"
)

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

func pathInt(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(mux.Vars(r)[name])
	return n, err == nil && n > 0
}

// Create adds a staff account
// POST /api/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := h.users.Create(r.Context(), &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusCreated, user)
}

// List returns staff, optionally scoped to one theater
// GET /api/users?theater_id=N
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	theaterID := 0
	if v := r.URL.Query().Get("theater_id"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			theaterID = n
		}
	}
	users, err := h.users.List(r.Context(), theaterID)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, users)
}

// Get returns one staff account
// GET /api/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid user id")
		return
	}
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, user)
}

// Update changes profile fields, role or password
// PUT /api/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req models.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := h.users.Update(r.Context(), id, &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, user)
}

// Deactivate suspends a staff account
// DELETE /api/users/{id}
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := h.users.Deactivate(r.Context(), id); err != nil {
		utils.Error(w, err)
		return
	}
	utils.Message(w, http.StatusOK, "user deactivated")
}

// BeginTOTP starts 2FA enrolment for the calling user
// POST /api/users/totp/setup
func (h *UserHandler) BeginTOTP(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	secret, url, err := h.users.BeginTOTPEnrolment(r.Context(), userID)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]string{
		"secret":           secret,
		"provisioning_url": url,
	})
}

// ConfirmTOTP finishes 2FA enrolment by verifying the first code
// POST /api/users/totp/confirm
func (h *UserHandler) ConfirmTOTP(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.users.ConfirmTOTPEnrolment(r.Context(), userID, req.Code); err != nil {
		utils.Error(w, err)
		return
	}
	utils.Message(w, http.StatusOK, "totp enabled")
}

// LoginLogs returns the recent sign-in audit trail
// GET /api/users/login-logs?limit=N
func (h *UserHandler) LoginLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.users.LoginAudit(r.Context(), queryInt(r, "limit"))
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, logs)
}
