package models

import "time"

// Category groups products inside one theater. Names are unique per theater
// (case-insensitive).
type Category struct {
	ID        int       `json:"id"`
	TheaterID int       `json:"theater_id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"` // food, beverage, snack, combo
	SortOrder int       `json:"sort_order"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategoryWithItems carries the computed product count for menu views. The
// per-theater list is computed, never stored.
type CategoryWithItems struct {
	Category
	ItemCount int       `json:"item_count"`
	Items     []Product `json:"items,omitempty"`
}

type CreateCategoryRequest struct {
	TheaterID int    `json:"theater_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	SortOrder int    `json:"sort_order"`
}

type UpdateCategoryRequest struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	SortOrder int    `json:"sort_order"`
	IsActive  *bool  `json:"is_active,omitempty"`
}
