// Command markers samples the points whose travel times will be fetched for a
// city: postcodes drawn per district and geocoded through postcodes.io, then
// grid, centre and jittered points spread over the city's bounding box.
//
// Usage:
//
//	go run ./cmd/markers -city Leeds [-fresh] [-noise distance_scaled]
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/commute-heatmap/internal/adapter/postcodes"
	"github.com/couchcryptid/commute-heatmap/internal/catalog"
	"github.com/couchcryptid/commute-heatmap/internal/config"
	"github.com/couchcryptid/commute-heatmap/internal/observability"
	"github.com/couchcryptid/commute-heatmap/internal/pipeline"
	"github.com/couchcryptid/commute-heatmap/internal/sampling"
	"github.com/google/uuid"
)

func main() {
	if err := run(); err != nil {
		slog.Error("markers failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cityName := flag.String("city", "", "city name from the catalog")
	fresh := flag.Bool("fresh", false, "resample even when a coordinates table exists")
	noise := flag.String("noise", sampling.NoiseUniform, "noise mode: uniform or distance_scaled")
	noiseLevel := flag.Float64("noise-level", 0.05, "noise amplitude in degrees")
	seed := flag.Uint64("seed", 0, "random seed for postcode picks and noise (0 picks one from the clock)")
	flag.Parse()

	if *cityName == "" {
		flag.Usage()
		return errors.New("missing required flag: -city")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg).With("run_id", uuid.NewString(), "cmd", "markers")
	metrics := observability.NewMetrics()

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return err
	}
	city, err := cat.Find(*cityName)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))

	client := postcodes.NewClient(cfg.PostcodesBaseURL, cfg.HTTPTimeout, metrics, logger)
	geocoder := postcodes.NewCachedGeocoder(client, cfg.PostcodesCacheSize, metrics)

	stage := &pipeline.MarkersStage{
		Sampler: sampling.NewSampler(geocoder, logger, cfg.PerDistrictSample, rng),
		Paths:   pipeline.Paths{DataDir: cfg.DataDir, OutputDir: cfg.OutputDir},
		Augment: sampling.AugmentOptions{NoiseMode: *noise, NoiseLevel: *noiseLevel},
		Rand:    rng,
		Reuse:   !*fresh,
		Logger:  logger,
	}
	points, err := stage.Run(ctx, city)
	if err != nil {
		return err
	}
	logger.Info("markers placed", "city", city.Slug(), "points", len(points), "seed", *seed)
	return nil
}
