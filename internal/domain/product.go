package domain

import "github.com/shopspring/decimal"

// Product is a catalog entry known to the sandbox API.
type Product struct {
	ID       ProductID       `json:"id"`
	Name     string          `json:"name"`
	Slug     string          `json:"slug,omitempty"`
	Image    string          `json:"image,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	// Stock < 0 means unlimited.
	Stock int `json:"stock"`
}
