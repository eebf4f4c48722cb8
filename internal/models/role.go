package models

import "time"

// Role is a per-theater named set of page permissions. Names are unique per
// theater (case-insensitive). Default roles cannot be deleted or renamed.
type Role struct {
	ID          int              `json:"id"`
	TheaterID   int              `json:"theater_id"`
	Name        string           `json:"name"`
	IsDefault   bool             `json:"is_default"`
	Permissions []PagePermission `json:"permissions"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// PagePermission grants access to one admin page for a role
type PagePermission struct {
	ID       int    `json:"id"`
	RoleID   int    `json:"role_id"`
	Page     string `json:"page"` // orders, products, stock, reports, settings, agents
	CanView  bool   `json:"can_view"`
	CanWrite bool   `json:"can_write"`
}

type CreateRoleRequest struct {
	TheaterID   int              `json:"theater_id"`
	Name        string           `json:"name"`
	Permissions []PagePermission `json:"permissions"`
}

type UpdateRoleRequest struct {
	Name        string           `json:"name"`
	Permissions []PagePermission `json:"permissions"`
}
