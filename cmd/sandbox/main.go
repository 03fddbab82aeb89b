package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"storefront/internal/config"
	"storefront/internal/httpserver"
	"storefront/internal/importer"
	"storefront/internal/logging"
	"storefront/internal/seed"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("sandbox")

	ctx := context.Background()
	catalog := httpserver.NewCatalog(nil)
	if cfg.SandboxCatalog == "" {
		n := seed.Apply(catalog)
		logger.Info("using demo catalog", zap.Int("products", n))
	} else {
		n, err := loadCatalog(ctx, cfg.SandboxCatalog, catalog)
		if err != nil {
			logger.Fatal("load catalog", zap.String("file", cfg.SandboxCatalog), zap.Error(err))
		}
		logger.Info("catalog loaded", zap.String("file", cfg.SandboxCatalog), zap.Int("products", n))
	}

	srv, err := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		Catalog:        catalog,
		UploadDir:      cfg.SandboxUploadDir,
		MaxUploadBytes: cfg.UploadMaxBytes,
		TaxPercent:     cfg.SandboxTaxPercent,
		AllowedOrigins: cfg.SandboxOrigins,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}

func loadCatalog(ctx context.Context, path string, catalog *httpserver.Catalog) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return importer.NewCSVImporter(f, catalog).Run(ctx)
}
