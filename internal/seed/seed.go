package seed

import (
	"github.com/shopspring/decimal"
	"storefront/internal/domain"
)

// ProductWriter receives seeded products.
type ProductWriter interface {
	Put(product domain.Product)
}

type productSeed struct {
	ID       int64
	Slug     string
	Name     string
	Price    string
	Currency string
	Stock    int
}

var products = []productSeed{
	{ID: 101, Slug: "demo-shirt", Name: "Demo T-Shirt", Price: "19.99", Currency: "USD", Stock: 25},
	{ID: 102, Slug: "demo-mug", Name: "Demo Mug", Price: "12.99", Currency: "USD", Stock: -1},
	{ID: 103, Slug: "demo-poster", Name: "Demo Poster", Price: "7.50", Currency: "USD", Stock: 0},
}

// Apply puts the demo products used for manual testing into catalog and returns how many.
// Putting the same id twice replaces it, so Apply is idempotent.
func Apply(catalog ProductWriter) int {
	for _, p := range products {
		catalog.Put(domain.Product{
			ID:       domain.ProductID(p.ID),
			Name:     p.Name,
			Slug:     p.Slug,
			Image:    "/img/" + p.Slug + ".jpg",
			Price:    decimal.RequireFromString(p.Price),
			Currency: p.Currency,
			Stock:    p.Stock,
		})
	}
	return len(products)
}
