package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"canteen-backend/internal/models"
	"canteen-backend/internal/repositories"
	"canteen-backend/pkg/utils"
)

// RoleHandler manages per-theater roles and their page permissions
type RoleHandler struct {
	roles *repositories.RoleRepository
}

func NewRoleHandler(roles *repositories.RoleRepository) *RoleHandler {
	return &RoleHandler{roles: roles}
}

func validateRolePermissions(perms []models.PagePermission) map[string]string {
	known := map[string]bool{
		"orders": true, "products": true, "stock": true,
		"reports": true, "settings": true, "agents": true,
	}
	for _, p := range perms {
		if !known[p.Page] {
			return map[string]string{"page": "unknown page " + p.Page}
		}
	}
	return nil
}

// Create adds a role with its permission set
// POST /api/roles
func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || req.TheaterID <= 0 {
		utils.ErrorStatus(w, http.StatusBadRequest, "theater_id and name are required")
		return
	}
	if fields := validateRolePermissions(req.Permissions); fields != nil {
		utils.Error(w, models.NewValidationError("invalid permissions", fields))
		return
	}

	role := &models.Role{
		TheaterID:   req.TheaterID,
		Name:        name,
		Permissions: req.Permissions,
	}
	if err := h.roles.Create(r.Context(), role); err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusCreated, role)
}

// List returns a theater's roles
// GET /api/roles?theater_id=N
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	theaterID := queryInt(r, "theater_id")
	if theaterID <= 0 {
		utils.ErrorStatus(w, http.StatusBadRequest, "theater_id query parameter required")
		return
	}
	roles, err := h.roles.List(r.Context(), theaterID)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, roles)
}

// Get returns one role with its permissions
// GET /api/roles/{id}
func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid role id")
		return
	}
	role, err := h.roles.Get(r.Context(), id)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, role)
}

// Update renames a role and replaces its permission set. Default roles keep
// their name.
// PUT /api/roles/{id}
func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid role id")
		return
	}
	var req models.UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fields := validateRolePermissions(req.Permissions); fields != nil {
		utils.Error(w, models.NewValidationError("invalid permissions", fields))
		return
	}

	role, err := h.roles.Get(r.Context(), id)
	if err != nil {
		utils.Error(w, err)
		return
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		role.Name = name
	}
	role.Permissions = req.Permissions
	if err := h.roles.Update(r.Context(), role); err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, role)
}

// Delete removes a non-default role
// DELETE /api/roles/{id}
func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid role id")
		return
	}
	if err := h.roles.Delete(r.Context(), id); err != nil {
		utils.Error(w, err)
		return
	}
	utils.Message(w, http.StatusOK, "role deleted")
}
