package httpserver

import (
	"sync"

	"storefront/internal/domain"
)

// Catalog is the in-memory product list the sandbox prices carts against.
type Catalog struct {
	mu       sync.RWMutex
	products map[domain.ProductID]domain.Product
	order    []domain.ProductID
}

// NewCatalog indexes products by id. Later duplicates replace earlier ones.
func NewCatalog(products []domain.Product) *Catalog {
	c := &Catalog{products: make(map[domain.ProductID]domain.Product, len(products))}
	for _, p := range products {
		c.Put(p)
	}
	return c
}

// Put adds or replaces a product.
func (c *Catalog) Put(p domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.products[p.ID]; !ok {
		c.order = append(c.order, p.ID)
	}
	c.products[p.ID] = p
}

func (c *Catalog) Product(id domain.ProductID) (domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	return p, ok
}

// Products returns products in insertion order.
func (c *Catalog) Products() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.products[id])
	}
	return out
}
