package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"canteen-backend/internal/middleware"
	"canteen-backend/internal/models"
	"canteen-backend/internal/services"
	"canteen-backend/pkg/utils"
)

type AuthHandler struct {
	users   *services.UserService
	limiter *middleware.RateLimiter
}

func NewAuthHandler(users *services.UserService, limiter *middleware.RateLimiter) *AuthHandler {
	return &AuthHandler{users: users, limiter: limiter}
}

// clientAddr resolves the caller's address, honoring the proxy header
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Login authenticates a staff member
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.users.Login(r.Context(), &req, clientAddr(r), r.UserAgent())
	if err != nil {
		utils.Error(w, err)
		return
	}

	// Successful logins do not count against the per-IP attempt window
	if h.limiter != nil {
		h.limiter.ForgiveLogin(r)
	}
	utils.JSON(w, http.StatusOK, resp)
}

// Refresh re-issues a token for the authenticated caller
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorStatus(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	resp, err := h.users.Refresh(r.Context(), userID)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, resp)
}

// Logout closes the caller's audit session. The token itself stays valid
// until expiry; clients discard it.
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorStatus(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.users.Logout(r.Context(), userID); err != nil {
		utils.Error(w, err)
		return
	}
	utils.Message(w, http.StatusOK, "logged out")
}

// Me returns the authenticated user's profile
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorStatus(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, user)
}
