package httpserver

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"storefront/internal/domain"
	"storefront/internal/repository/record"
)

var hundred = decimal.NewFromInt(100)

type cartLineRequest struct {
	ProductID         domain.ProductID  `json:"productId"`
	Quantity          *int              `json:"quantity"`
	VariantAttributes domain.Attributes `json:"variantAttributes"`
}

type cartResponse struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message,omitempty"`
	Cart       []domain.CartLine `json:"cart"`
	CookieData string            `json:"cookieData"`
	Count      int               `json:"count"`
	Total      decimal.Decimal   `json:"total"`
	TaxTotal   decimal.Decimal   `json:"taxTotal"`
	GrandTotal decimal.Decimal   `json:"grandTotal"`
}

func (h *handlers) getCart(c *gin.Context) {
	h.respondCart(c, h.cartFromCookie(c), "")
}

func (h *handlers) addCartLine(c *gin.Context) {
	req, ok := bindLine(c)
	if !ok {
		return
	}
	p, ok := h.catalog.Product(req.ProductID)
	if !ok {
		fail(c, http.StatusNotFound, "Product not found")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = clamp(*req.Quantity)
	}

	lines := h.cartFromCookie(c)
	idx := indexOf(lines, req.ProductID, req.VariantAttributes)
	if idx >= 0 {
		qty += lines[idx].Quantity
	}
	if msg, ok := checkStock(p, qty+reservedElsewhere(lines, idx, p.ID)); !ok {
		fail(c, http.StatusOK, msg)
		return
	}
	if idx >= 0 {
		lines[idx].Quantity = qty
	} else {
		lines = append(lines, priced(domain.CartLine{
			ProductID:         req.ProductID,
			VariantAttributes: req.VariantAttributes.Clone(),
			Quantity:          qty,
		}, p))
	}
	h.respondCart(c, lines, fmt.Sprintf("%s added to cart", p.Name))
}

func (h *handlers) updateCartLine(c *gin.Context) {
	req, ok := bindLine(c)
	if !ok {
		return
	}
	lines := h.cartFromCookie(c)
	idx := indexOf(lines, req.ProductID, req.VariantAttributes)
	if idx < 0 {
		fail(c, http.StatusNotFound, "Item not in cart")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = clamp(*req.Quantity)
	}
	p, _ := h.catalog.Product(req.ProductID)
	if msg, ok := checkStock(p, qty+reservedElsewhere(lines, idx, p.ID)); !ok {
		fail(c, http.StatusOK, msg)
		return
	}
	lines[idx].Quantity = qty
	h.respondCart(c, lines, "Cart updated")
}

func (h *handlers) removeCartLine(c *gin.Context) {
	req, ok := bindLine(c)
	if !ok {
		return
	}
	lines := h.cartFromCookie(c)
	idx := indexOf(lines, req.ProductID, req.VariantAttributes)
	if idx < 0 {
		fail(c, http.StatusNotFound, "Item not in cart")
		return
	}
	lines = append(lines[:idx], lines[idx+1:]...)
	h.respondCart(c, lines, "Item removed")
}

func bindLine(c *gin.Context) (cartLineRequest, bool) {
	var req cartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request")
		return req, false
	}
	if req.ProductID <= 0 {
		fail(c, http.StatusBadRequest, "productId is required")
		return req, false
	}
	if req.VariantAttributes == nil {
		req.VariantAttributes = domain.Attributes{}
	}
	return req, true
}

// cartFromCookie reads the cart record and re-prices it against the catalog. Unknown
// products are dropped and repeated identities are merged.
func (h *handlers) cartFromCookie(c *gin.Context) []domain.CartLine {
	stored := readRecord[domain.CartLine](c, h.logger, record.CartKey)
	lines := make([]domain.CartLine, 0, len(stored))
	for _, l := range stored {
		p, ok := h.catalog.Product(l.ProductID)
		if !ok {
			continue
		}
		l.Quantity = clamp(l.Quantity)
		if idx := indexOf(lines, l.ProductID, l.VariantAttributes); idx >= 0 {
			lines[idx].Quantity += l.Quantity
			continue
		}
		lines = append(lines, priced(l, p))
	}
	return lines
}

func (h *handlers) respondCart(c *gin.Context, lines []domain.CartLine, msg string) {
	if lines == nil {
		lines = []domain.CartLine{}
	}
	cookie, err := writeRecord(c, record.CartKey, lines)
	if err != nil {
		h.logger.Error("encode cart cookie", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Could not save cart")
		return
	}
	resp := cartResponse{
		Success:    true,
		Message:    msg,
		Cart:       lines,
		CookieData: cookie,
		Total:      decimal.Zero,
	}
	for _, l := range lines {
		resp.Count += l.Quantity
		resp.Total = resp.Total.Add(l.LineTotal())
	}
	resp.TaxTotal = resp.Total.Mul(h.tax).Div(hundred).Round(2)
	resp.GrandTotal = resp.Total.Add(resp.TaxTotal)
	c.JSON(http.StatusOK, resp)
}

func priced(l domain.CartLine, p domain.Product) domain.CartLine {
	if l.VariantAttributes == nil {
		l.VariantAttributes = domain.Attributes{}
	}
	l.Price = p.Price
	l.Currency = p.Currency
	l.Name = p.Name
	l.Slug = p.Slug
	l.Image = p.Image
	return l
}

func indexOf(lines []domain.CartLine, id domain.ProductID, attrs domain.Attributes) int {
	for i, l := range lines {
		if l.Matches(id, attrs) {
			return i
		}
	}
	return -1
}

// reservedElsewhere sums the quantity of the product held by lines other than skip, i.e. other
// variants of the same product. skip may be -1.
func reservedElsewhere(lines []domain.CartLine, skip int, id domain.ProductID) int {
	n := 0
	for i, l := range lines {
		if i != skip && l.ProductID == id {
			n += l.Quantity
		}
	}
	return n
}

func checkStock(p domain.Product, qty int) (string, bool) {
	if p.Stock < 0 || qty <= p.Stock {
		return "", true
	}
	if p.Stock == 0 {
		return fmt.Sprintf("%s is out of stock", p.Name), false
	}
	return fmt.Sprintf("Only %d of %s left in stock", p.Stock, p.Name), false
}

func clamp(q int) int {
	if q < 1 {
		return 1
	}
	return q
}
