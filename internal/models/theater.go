package models

import "time"

// Theater is a tenant. Every catalog entity, stock month, order and agent is
// scoped to exactly one theater.
type Theater struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"` // short unique code used in receipts and agent config
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"` // soft-active; hard delete removes the row
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AgentCredentials are the per-theater machine credentials handed to the
// agent subprocess via environment and mirrored into the on-disk agent
// config. Stored retrievably so the supervisor can restart agents after a
// backend reboot; access to them sits behind the TOTP-gated admin surface.
type AgentCredentials struct {
	TheaterID int    `json:"theater_id"`
	Username  string `json:"username"`
	Password  string `json:"-"`
	PIN       string `json:"pin,omitempty"`
	Label     string `json:"label"`
	Enabled   bool   `json:"enabled"`
}

// ProvisionAgentRequest carries new agent credentials. The caller must prove
// TOTP possession; credential writes sit behind step-up auth.
type ProvisionAgentRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	PIN      string `json:"pin"`
	Label    string `json:"label"`
	Enabled  bool   `json:"enabled"`
	TOTPCode string `json:"totp_code"`
}

type CreateTheaterRequest struct {
	Name    string `json:"name"`
	Code    string `json:"code"`
	Address string `json:"address"`
}

type UpdateTheaterRequest struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	IsActive *bool  `json:"is_active,omitempty"`
}
