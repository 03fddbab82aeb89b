package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// ProductID identifies a catalog product. The storefront API sometimes sends it as a string.
type ProductID int64

func (id *ProductID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("product id %q: %w", s, err)
		}
		*id = ProductID(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("product id: %w", err)
	}
	*id = ProductID(n)
	return nil
}

func (id ProductID) String() string { return strconv.FormatInt(int64(id), 10) }

// CartLine is one row of the cart as computed by the server.
// ProductID + VariantAttributes form the line identity.
type CartLine struct {
	ProductID         ProductID       `json:"productId"`
	VariantAttributes Attributes      `json:"variantAttributes"`
	Quantity          int             `json:"quantity"`
	Price             decimal.Decimal `json:"price"`
	Currency          string          `json:"currency"`
	Name              string          `json:"name,omitempty"`
	Slug              string          `json:"slug,omitempty"`
	Image             string          `json:"image,omitempty"`
}

// Matches reports whether the line has the given identity.
func (l CartLine) Matches(productID ProductID, attrs Attributes) bool {
	return l.ProductID == productID && l.VariantAttributes.Equal(attrs)
}

// LineTotal is price × quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LineKey renders the identity of a line as a comparable string.
func LineKey(productID ProductID, attrs Attributes) string {
	return productID.String() + "|" + attrs.Key()
}

// CloneLines deep-copies lines so callers cannot alias store state.
func CloneLines(lines []CartLine) []CartLine {
	out := make([]CartLine, len(lines))
	for i, l := range lines {
		l.VariantAttributes = l.VariantAttributes.Clone()
		out[i] = l
	}
	return out
}
