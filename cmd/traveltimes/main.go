// Command traveltimes fetches travel times from a city's centre to each of its
// sample points through the Google Distance Matrix API. Progress is
// checkpointed after every batch; rerunning resumes where the last run stopped.
//
// Usage:
//
//	GOOGLE_MAPS_API_KEY=... go run ./cmd/traveltimes -city Leeds
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/commute-heatmap/internal/adapter/googlemaps"
	"github.com/couchcryptid/commute-heatmap/internal/catalog"
	"github.com/couchcryptid/commute-heatmap/internal/config"
	"github.com/couchcryptid/commute-heatmap/internal/observability"
	"github.com/couchcryptid/commute-heatmap/internal/pipeline"
	"github.com/google/uuid"
)

func main() {
	if err := run(); err != nil {
		slog.Error("travel times failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cityName := flag.String("city", "", "city name from the catalog")
	flag.Parse()

	if *cityName == "" {
		flag.Usage()
		return errors.New("missing required flag: -city")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg).With("run_id", uuid.NewString(), "cmd", "traveltimes")
	metrics := observability.NewMetrics()

	provider, err := googlemaps.NewClient(cfg.GoogleMapsAPIKey, cfg.TravelMode, cfg.HTTPTimeout, metrics, logger)
	if err != nil {
		return err
	}

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return err
	}
	city, err := cat.Find(*cityName)
	if err != nil {
		return err
	}

	// Interrupting stops between batches; the checkpoint keeps every completed batch.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stage := &pipeline.TravelTimesStage{
		Provider:  provider,
		Paths:     pipeline.Paths{DataDir: cfg.DataDir, OutputDir: cfg.OutputDir},
		Backend:   cfg.CheckpointBackend,
		BatchSize: cfg.BatchSize,
		Throttle:  cfg.BatchDelay,
		Logger:    logger,
		Metrics:   metrics,
	}
	records, err := stage.Run(ctx, city)
	if err != nil {
		return err
	}
	logger.Info("travel times ready", "city", city.Slug(), "valid", len(records), "mode", cfg.TravelMode)
	return nil
}
