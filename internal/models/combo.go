package models

import (
	"math"
	"time"
)

// Combo is a named bundle of products sold at a discounted price.
type Combo struct {
	ID           int       `json:"id"`
	TheaterID    int       `json:"theater_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	ImageURL     string    `json:"image_url"`
	ActualPrice  float64   `json:"actual_price"`  // sum of component prices
	CurrentPrice float64   `json:"current_price"` // what the customer pays
	TaxRate      float64   `json:"tax_rate"`
	GSTInclusive bool      `json:"gst_inclusive"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Items []ComboItem `json:"items,omitempty"`
}

// ComboItem is one product inside a combo
type ComboItem struct {
	ID        int `json:"id"`
	ComboID   int `json:"combo_id"`
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

// Discount is actualPrice - currentPrice, never negative
func (c *Combo) Discount() float64 {
	d := c.ActualPrice - c.CurrentPrice
	if d < 0 {
		return 0
	}
	return d
}

// DiscountPercentage is round(discount / actualPrice * 100, 2)
func (c *Combo) DiscountPercentage() float64 {
	if c.ActualPrice <= 0 {
		return 0
	}
	return math.Round(c.Discount()/c.ActualPrice*100*100) / 100
}

// FinalPrice applies the GST policy to the current price
func (c *Combo) FinalPrice() float64 {
	if c.GSTInclusive {
		return c.CurrentPrice
	}
	return math.Round(c.CurrentPrice*(1+c.TaxRate/100)*100) / 100
}

type CreateComboRequest struct {
	TheaterID    int         `json:"theater_id"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	ImageURL     string      `json:"image_url"`
	ActualPrice  float64     `json:"actual_price"`
	CurrentPrice float64     `json:"current_price"`
	TaxRate      float64     `json:"tax_rate"`
	GSTInclusive bool        `json:"gst_inclusive"`
	Items        []ComboItem `json:"items"`
}

// UpdateComboRequest replaces the combo's fields; when Items is non-nil the
// component list is replaced wholesale.
type UpdateComboRequest struct {
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	ImageURL     string      `json:"image_url"`
	ActualPrice  *float64    `json:"actual_price"`
	CurrentPrice *float64    `json:"current_price"`
	TaxRate      *float64    `json:"tax_rate"`
	GSTInclusive *bool       `json:"gst_inclusive"`
	IsActive     *bool       `json:"is_active"`
	Items        []ComboItem `json:"items"`
}
