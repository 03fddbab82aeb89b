// Package record persists the client-side cart and wishlist records.
//
// A record is the percent-encoded JSON value the storefront keeps in a cookie. The same
// Store interface is backed by a browser-like cookie jar, Postgres, or Redis so headless
// clients can keep their cart between runs.
package record

import (
	"context"
	"time"
)

// Well-known record keys.
const (
	CartKey     = "cart_items"
	WishlistKey = "wishlist_items"
)

// DefaultTTL is how long a record survives without being rewritten.
const DefaultTTL = 30 * 24 * time.Hour

// Store is a key-value persistence capability with per-entry expiry.
type Store interface {
	// Get returns the value and true, or "" and false when the key is missing or expired.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
