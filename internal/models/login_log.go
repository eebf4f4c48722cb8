package models

import "time"

// LoginLog is one staff sign-in, closed when the user logs out
type LoginLog struct {
	ID         int        `json:"id"`
	UserID     int        `json:"user_id"`
	UserEmail  string     `json:"user_email,omitempty"`
	LoginTime  time.Time  `json:"login_time"`
	LogoutTime *time.Time `json:"logout_time,omitempty"`
	IPAddress  string     `json:"ip_address,omitempty"`
	UserAgent  string     `json:"user_agent,omitempty"`
}
