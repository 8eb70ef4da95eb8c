// Command heatmap interpolates a city's travel times onto a regular grid and
// renders the map artifacts: an HTML overlay page, the raw raster, contour
// GeoJSON and a static preview. With -all every catalog city is processed and
// one city's failure does not stop the others.
//
// Usage:
//
//	go run ./cmd/heatmap -city Leeds [-force] [-no-preview]
//	go run ./cmd/heatmap -all
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	kafkaadapter "github.com/couchcryptid/commute-heatmap/internal/adapter/kafka"
	"github.com/couchcryptid/commute-heatmap/internal/catalog"
	"github.com/couchcryptid/commute-heatmap/internal/config"
	"github.com/couchcryptid/commute-heatmap/internal/interp"
	"github.com/couchcryptid/commute-heatmap/internal/observability"
	"github.com/couchcryptid/commute-heatmap/internal/pipeline"
	"github.com/couchcryptid/commute-heatmap/internal/render"
	"github.com/google/uuid"
)

func main() {
	if err := run(); err != nil {
		slog.Error("heatmap failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cityName := flag.String("city", "", "city name from the catalog")
	all := flag.Bool("all", false, "render every city in the catalog")
	force := flag.Bool("force", false, "re-interpolate even when a stored grid exists")
	noPreview := flag.Bool("no-preview", false, "skip the static preview image")
	flag.Parse()

	if (*cityName == "") == !*all {
		flag.Usage()
		return errors.New("exactly one of -city or -all is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	logger := observability.NewLogger(cfg).With("run_id", runID, "cmd", "heatmap")
	metrics := observability.NewMetrics()

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return err
	}
	var cities []catalog.City
	if *all {
		for _, name := range cat.Names() {
			city, _ := cat.Find(name)
			cities = append(cities, city)
		}
	} else {
		city, err := cat.Find(*cityName)
		if err != nil {
			return err
		}
		cities = append(cities, city)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	renderOpts := render.DefaultOptions()
	renderOpts.Levels = cfg.ContourLevels
	renderOpts.ColorMap = cfg.ColorMap
	renderOpts.LogScale = cfg.LogScale
	renderOpts.Preview = !*noPreview

	stage := &pipeline.HeatmapStage{
		Paths: pipeline.Paths{DataDir: cfg.DataDir, OutputDir: cfg.OutputDir},
		Interp: interp.Options{
			Resolution: cfg.GridResolution,
			Method:     cfg.InterpolationMethod,
			Sigma:      cfg.SmoothingSigma,
		},
		Render:   renderOpts,
		Renderer: render.NewRenderer(logger, metrics),
		Force:    *force,
		RunID:    runID,
		Logger:   logger,
		Metrics:  metrics,
	}

	if len(cfg.KafkaBrokers) > 0 {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		stage.Notifier = writer
		logger.Info("heatmap notifications enabled", "topic", cfg.KafkaTopic)
	}

	var failed []string
	for _, city := range cities {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := stage.Run(ctx, city); err != nil {
			failed = append(failed, city.Name)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d cities failed: %v", len(failed), len(cities), failed)
	}
	return nil
}
