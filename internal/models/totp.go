package models

import "time"

// TOTPVerificationAttempt is one 2FA code check, recorded for throttling.
// Step-up verification on the agent-credential endpoints locks after too
// many recent failures.
type TOTPVerificationAttempt struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	IPAddress string    `json:"ip_address"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}
