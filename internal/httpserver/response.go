package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"storefront/internal/repository/record"
)

type handlers struct {
	logger  *zap.Logger
	catalog *Catalog
	tax     decimal.Decimal
	upload  string
	maxSize int64
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg})
}

func (h *handlers) listProducts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "products": h.catalog.Products()})
}

// readRecord decodes the cookie record key from the request. A missing or corrupt
// cookie reads as an empty list.
func readRecord[T any](c *gin.Context, logger *zap.Logger, key string) []T {
	ck, err := c.Request.Cookie(key)
	if err != nil {
		return nil
	}
	var out []T
	if err := record.Decode(ck.Value, &out); err != nil {
		logger.Debug("ignore corrupt record cookie", zap.String("key", key), zap.Error(err))
		return nil
	}
	return out
}

// writeRecord sets the cookie record key on the response and returns its value.
func writeRecord(c *gin.Context, key string, v any) (string, error) {
	value, err := record.Encode(v)
	if err != nil {
		return "", err
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     key,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(record.DefaultTTL),
		MaxAge:   int(record.DefaultTTL.Seconds()),
		SameSite: http.SameSiteLaxMode,
		Secure:   c.Request.TLS != nil,
	})
	return value, nil
}
