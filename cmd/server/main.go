package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	httpadapter "github.com/couchcryptid/commute-heatmap/internal/adapter/http"
	"github.com/couchcryptid/commute-heatmap/internal/catalog"
	"github.com/couchcryptid/commute-heatmap/internal/config"
	"github.com/couchcryptid/commute-heatmap/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg).With("cmd", "server")
	metrics := observability.NewMetrics()

	// The server starts without a catalog; /readyz reports it until one loads.
	holder := catalog.NewHolder(cfg.CatalogFile, logger, metrics)
	if err := holder.Reload(); err != nil {
		logger.Error("catalog load failed", "path", cfg.CatalogFile, "error", err)
	}
	if err := holder.Start(cfg.CatalogReloadInterval); err != nil {
		logger.Error("catalog reload scheduling failed", "error", err)
		os.Exit(1)
	}

	staticDir := filepath.Join(cfg.StaticDir, "preprocessing")
	srv := httpadapter.NewServer(cfg.HTTPAddr, staticDir, holder, holder, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("map server listening", "addr", cfg.HTTPAddr, "static_dir", staticDir)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	holder.Stop()

	logger.Info("shutdown complete")
}
