package models

import "time"

type SystemSetting struct {
	ID              int       `json:"id"`
	TheaterID       *int      `json:"theater_id"` // nil = platform-wide default
	SettingKey      string    `json:"setting_key"`
	SettingValue    string    `json:"setting_value"`
	Description     string    `json:"description"`
	UpdatedAt       time.Time `json:"updated_at"`
	UpdatedByUserID int       `json:"updated_by_user_id"`
}

type UpdateSettingRequest struct {
	SettingValue string `json:"setting_value"`
}

// Well-known setting keys consumed by the order engine
const (
	SettingServiceChargePct = "service_charge_pct"
	SettingDefaultGSTRate   = "default_gst_rate"
	SettingGSTInclusive     = "gst_inclusive"
)
