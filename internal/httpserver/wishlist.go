package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"storefront/internal/domain"
	"storefront/internal/repository/record"
)

type wishlistRequest struct {
	ProductID domain.ProductID `json:"productId"`
}

type wishlistResponse struct {
	Success    bool                  `json:"success"`
	Message    string                `json:"message,omitempty"`
	Wishlist   []domain.WishlistItem `json:"wishlist"`
	CookieData string                `json:"cookieData"`
	Count      int                   `json:"count"`
}

func (h *handlers) getWishlist(c *gin.Context) {
	h.respondWishlist(c, h.wishlistFromCookie(c), "")
}

func (h *handlers) addWishlistItem(c *gin.Context) {
	req, ok := bindWishlist(c)
	if !ok {
		return
	}
	p, ok := h.catalog.Product(req.ProductID)
	if !ok {
		fail(c, http.StatusNotFound, "Product not found")
		return
	}
	items := h.wishlistFromCookie(c)
	for _, it := range items {
		if it.ProductID == req.ProductID {
			h.respondWishlist(c, items, "Already in your wishlist")
			return
		}
	}
	items = append(items, wishlistEntry(p))
	h.respondWishlist(c, items, "Added to wishlist")
}

func (h *handlers) removeWishlistItem(c *gin.Context) {
	req, ok := bindWishlist(c)
	if !ok {
		return
	}
	items := h.wishlistFromCookie(c)
	kept := items[:0]
	for _, it := range items {
		if it.ProductID != req.ProductID {
			kept = append(kept, it)
		}
	}
	h.respondWishlist(c, kept, "Removed from wishlist")
}

func bindWishlist(c *gin.Context) (wishlistRequest, bool) {
	var req wishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request")
		return req, false
	}
	if req.ProductID <= 0 {
		fail(c, http.StatusBadRequest, "productId is required")
		return req, false
	}
	return req, true
}

func (h *handlers) wishlistFromCookie(c *gin.Context) []domain.WishlistItem {
	stored := readRecord[domain.WishlistItem](c, h.logger, record.WishlistKey)
	items := make([]domain.WishlistItem, 0, len(stored))
	seen := make(map[domain.ProductID]bool, len(stored))
	for _, it := range stored {
		p, ok := h.catalog.Product(it.ProductID)
		if !ok || seen[it.ProductID] {
			continue
		}
		seen[it.ProductID] = true
		items = append(items, wishlistEntry(p))
	}
	return items
}

func (h *handlers) respondWishlist(c *gin.Context, items []domain.WishlistItem, msg string) {
	if items == nil {
		items = []domain.WishlistItem{}
	}
	cookie, err := writeRecord(c, record.WishlistKey, items)
	if err != nil {
		h.logger.Error("encode wishlist cookie", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Could not save wishlist")
		return
	}
	c.JSON(http.StatusOK, wishlistResponse{
		Success:    true,
		Message:    msg,
		Wishlist:   items,
		CookieData: cookie,
		Count:      len(items),
	})
}

func wishlistEntry(p domain.Product) domain.WishlistItem {
	price := p.Price
	return domain.WishlistItem{
		ProductID: p.ID,
		Name:      p.Name,
		Slug:      p.Slug,
		Image:     p.Image,
		Price:     &price,
		Currency:  p.Currency,
	}
}
