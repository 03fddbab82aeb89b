package httpserver

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultMaxUpload = 5 << 20

// buildRouter wires routes for the sandbox API.
func buildRouter(logger *zap.Logger, deps Deps) (*gin.Engine, error) {
	if deps.Catalog == nil {
		deps.Catalog = NewCatalog(nil)
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = defaultMaxUpload
	}
	if deps.UploadDir != "" {
		if err := os.MkdirAll(deps.UploadDir, 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.MaxMultipartMemory = deps.MaxUploadBytes
	router.Use(gin.LoggerWithWriter(zap.NewStdLog(logger).Writer()), gin.Recovery())
	router.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.UploadDir))

	h := &handlers{
		logger:  logger,
		catalog: deps.Catalog,
		tax:     deps.TaxPercent,
		upload:  deps.UploadDir,
		maxSize: deps.MaxUploadBytes,
	}

	api := router.Group("/api")
	api.GET("/products", h.listProducts)
	api.GET("/cart", h.getCart)
	api.POST("/cart", h.addCartLine)
	api.PUT("/cart", h.updateCartLine)
	api.DELETE("/cart", h.removeCartLine)
	api.GET("/wishlist", h.getWishlist)
	api.POST("/wishlist", h.addWishlistItem)
	api.DELETE("/wishlist", h.removeWishlistItem)

	router.POST("/admin/api/upload", h.uploadImage)
	if deps.UploadDir != "" {
		router.Static("/uploads", deps.UploadDir)
	}

	return router, nil
}

// Credentials are only allowed for configured origins. Without any, every origin is accepted
// and cookies are not.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "X-Requested-With"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) > 0 {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	} else {
		cfg.AllowAllOrigins = true
	}
	return cfg
}
