package httpserver

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"storefront/internal/logging"
)

// Deps carries what the sandbox API needs to answer requests.
type Deps struct {
	Catalog        *Catalog
	UploadDir      string
	MaxUploadBytes int64
	TaxPercent     decimal.Decimal
	// AllowedOrigins limits CORS and enables credentials; empty allows any origin without credentials.
	AllowedOrigins []string
}

// Server wraps the HTTP server setup.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// New builds the sandbox storefront API server.
func New(addr string, logger *zap.Logger, deps Deps) (*Server, error) {
	logger = logging.OrNop(logger).Named("sandbox")
	router, err := buildRouter(logger, deps)
	if err != nil {
		return nil, err
	}

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		httpServer: httpSrv,
		logger:     logger,
	}, nil
}

// Handler exposes the router, mainly for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func readyHandler(uploadDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if uploadDir == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "upload dir not configured"})
			return
		}
		if info, err := os.Stat(uploadDir); err != nil || !info.IsDir() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "upload dir not reachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
