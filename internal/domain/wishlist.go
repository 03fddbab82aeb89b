package domain

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// WishlistItem is one saved product.
type WishlistItem struct {
	ProductID ProductID        `json:"productId"`
	Name      string           `json:"name,omitempty"`
	Slug      string           `json:"slug,omitempty"`
	Image     string           `json:"image,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Currency  string           `json:"currency,omitempty"`
}

// UnmarshalJSON accepts either a full object or a bare product id.
func (w *WishlistItem) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] != '{' {
		var id ProductID
		if err := id.UnmarshalJSON(trimmed); err != nil {
			return err
		}
		*w = WishlistItem{ProductID: id}
		return nil
	}
	type plain WishlistItem
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*w = WishlistItem(p)
	return nil
}
