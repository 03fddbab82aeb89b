package domain

import "github.com/shopspring/decimal"

// MaxVariantOptions is the number of option axes a product may have.
const MaxVariantOptions = 2

// VariantOption is one axis of the variant grid, e.g. Size = [S, M, L].
type VariantOption struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Active reports whether the option takes part in variant generation.
func (o VariantOption) Active() bool {
	return o.Name != "" && len(o.Values) > 0
}

// Stock statuses understood by the admin form.
const (
	StockInStock    = "instock"
	StockOutOfStock = "outofstock"
	StockBackorder  = "onbackorder"
)

// VariantRecord is one purchasable combination and its admin-entered data.
// ID is nil until the record has been saved by the server.
type VariantRecord struct {
	ID            *int64              `json:"id"`
	Attributes    Attributes          `json:"attributes"`
	SKU           string              `json:"sku"`
	Price         decimal.NullDecimal `json:"price"`
	SalePrice     decimal.NullDecimal `json:"salePrice"`
	StockQuantity *int                `json:"stockQuantity"`
	StockStatus   string              `json:"stockStatus"`
	Image         string              `json:"image"`
	Barcode       string              `json:"barcode"`
	IsDefault     bool                `json:"isDefault"`
}

// VariantState is the serialized form of the builder consumed by the product form handler.
type VariantState struct {
	Options  []VariantOption `json:"options"`
	Variants []VariantRecord `json:"variants"`
}
