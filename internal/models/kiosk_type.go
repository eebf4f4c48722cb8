package models

import "time"

// KioskType is a template for self-service kiosks at a theater (e.g.
// "popcorn counter", "beverage wall"). Products optionally reference one to
// control which kiosk screens list them.
type KioskType struct {
	ID          int       `json:"id"`
	TheaterID   int       `json:"theater_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PrinterHint string    `json:"printer_hint"` // preferred printer for orders from this kiosk
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateKioskTypeRequest struct {
	TheaterID   int    `json:"theater_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PrinterHint string `json:"printer_hint"`
}
