package models

import "time"

// Product belongs to a theater. Pricing and inventory policy live here; the
// monthly stock ledger only keeps quantities.
type Product struct {
	ID          int     `json:"id"`
	TheaterID   int     `json:"theater_id"`
	CategoryID  int     `json:"category_id"`
	KioskTypeID *int    `json:"kiosk_type_id,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ImageURL    string  `json:"image_url"`

	// Pricing
	BasePrice    float64  `json:"base_price"`
	SalePrice    *float64 `json:"sale_price,omitempty"` // must be <= base_price when set
	TaxRate      float64  `json:"tax_rate"`             // GST percent
	GSTInclusive bool     `json:"gst_inclusive"`

	// Inventory policy
	TrackStock bool   `json:"track_stock"`
	MinStock   int    `json:"min_stock"`
	MaxStock   int    `json:"max_stock"`
	StockUnit  string `json:"stock_unit"` // default unit, e.g. "pcs", "kg", "ltr"

	IsActive    bool      `json:"is_active"`
	IsAvailable bool      `json:"is_available"` // temporarily off the menu (sold out today)
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EffectivePrice returns the sale price when set, else the base price
func (p *Product) EffectivePrice() float64 {
	if p.SalePrice != nil && *p.SalePrice > 0 {
		return *p.SalePrice
	}
	return p.BasePrice
}

// Sellable reports whether the product can appear on an order right now
func (p *Product) Sellable() bool {
	return p.IsActive && p.IsAvailable
}

type CreateProductRequest struct {
	TheaterID    int      `json:"theater_id"`
	CategoryID   int      `json:"category_id"`
	KioskTypeID  *int     `json:"kiosk_type_id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	ImageURL     string   `json:"image_url"`
	BasePrice    float64  `json:"base_price"`
	SalePrice    *float64 `json:"sale_price"`
	TaxRate      float64  `json:"tax_rate"`
	GSTInclusive bool     `json:"gst_inclusive"`
	TrackStock   bool     `json:"track_stock"`
	MinStock     int      `json:"min_stock"`
	MaxStock     int      `json:"max_stock"`
	StockUnit    string   `json:"stock_unit"`
}

type UpdateProductRequest struct {
	CategoryID   int      `json:"category_id"`
	KioskTypeID  *int     `json:"kiosk_type_id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	ImageURL     string   `json:"image_url"`
	BasePrice    float64  `json:"base_price"`
	SalePrice    *float64 `json:"sale_price"`
	TaxRate      float64  `json:"tax_rate"`
	GSTInclusive bool     `json:"gst_inclusive"`
	TrackStock   bool     `json:"track_stock"`
	MinStock     int      `json:"min_stock"`
	MaxStock     int      `json:"max_stock"`
	StockUnit    string   `json:"stock_unit"`
	IsActive     *bool    `json:"is_active,omitempty"`
	IsAvailable  *bool    `json:"is_available,omitempty"`
}

// ProductFilter is used when listing products for a theater
type ProductFilter struct {
	TheaterID   int    `json:"theater_id"`
	CategoryID  int    `json:"category_id"`
	KioskTypeID int    `json:"kiosk_type_id"`
	Search      string `json:"search"`
	ActiveOnly  bool   `json:"active_only"`
	Limit       int    `json:"limit"`
	Offset      int    `json:"offset"`
}
