package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/couchcryptid/commute-heatmap/internal/adapter/gridstore"
	"github.com/couchcryptid/commute-heatmap/internal/adapter/table"
	"github.com/couchcryptid/commute-heatmap/internal/catalog"
	"github.com/couchcryptid/commute-heatmap/internal/domain"
	"github.com/couchcryptid/commute-heatmap/internal/interp"
	"github.com/couchcryptid/commute-heatmap/internal/observability"
	"github.com/couchcryptid/commute-heatmap/internal/render"
)

// Notifier announces rendered heatmaps.
type Notifier interface {
	Notify(ctx context.Context, event domain.HeatmapRendered) error
}

// HeatmapStage interpolates a city's travel times and renders the artifacts.
type HeatmapStage struct {
	Paths    Paths
	Interp   interp.Options
	Render   render.Options
	Renderer *render.Renderer
	// Notifier is optional.
	Notifier Notifier
	// Force re-interpolates even when a grid blob exists.
	Force   bool
	RunID   string
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Run builds or reuses the city's grid, renders it, and writes the artifact
// files. It returns the paths written. A render failure writes nothing.
func (s *HeatmapStage) Run(ctx context.Context, city catalog.City) ([]string, error) {
	logger := s.Logger.With("city", city.Slug())

	grid, err := s.grid(city, logger)
	if err != nil {
		logger.Error("no grid produced", "error", err)
		return nil, err
	}

	art, err := s.Renderer.Render(grid, s.Render)
	if err != nil {
		logger.Error("no artifact produced", "error", err)
		return nil, fmt.Errorf("heatmap for %s: %w", city.Name, err)
	}

	files, err := art.Files()
	if err != nil {
		return nil, fmt.Errorf("heatmap for %s: %w", city.Name, err)
	}
	written, err := s.write(files)
	if err != nil {
		return nil, fmt.Errorf("heatmap for %s: %w", city.Name, err)
	}
	for _, name := range art.Omitted() {
		path := s.Paths.Artifact(name)
		if err := os.Remove(path); err == nil {
			logger.Info("removed stale artifact", "path", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return written, fmt.Errorf("heatmap for %s: remove %s: %w", city.Name, name, err)
		}
	}
	logger.Info("artifacts written", "files", written)

	if s.Notifier != nil {
		names := make([]string, 0, len(files))
		for name := range files {
			names = append(names, name)
		}
		sort.Strings(names)
		event := domain.HeatmapRendered{
			RunID:      s.RunID,
			City:       city.Slug(),
			Method:     grid.Method,
			Samples:    grid.Samples,
			Levels:     art.Levels,
			Files:      names,
			RenderedAt: domain.Clock().Now().UTC(),
		}
		if err := s.Notifier.Notify(ctx, event); err != nil {
			logger.Warn("heatmap notification failed", "error", err)
		}
	}
	return written, nil
}

// grid loads the persisted grid unless Force is set or it is unusable, in
// which case the travel-times table is interpolated and the blob rewritten.
func (s *HeatmapStage) grid(city catalog.City, logger *slog.Logger) (*domain.InterpolatedGrid, error) {
	path := s.Paths.Grid(city)
	if !s.Force {
		grid, err := gridstore.Load(path)
		if err == nil {
			logger.Info("reusing interpolated grid", "path", path, "rows", grid.Rows(), "cols", grid.Cols())
			return grid, nil
		}
		if _, statErr := os.Stat(path); statErr == nil {
			logger.Warn("stored grid unusable, re-interpolating", "path", path, "error", err)
		}
	}

	records, err := table.LoadTravelTimes(s.Paths.TravelTimes(city), logger)
	if err != nil {
		return nil, fmt.Errorf("heatmap for %s: %w", city.Name, err)
	}

	start := time.Now()
	grid, err := interp.Interpolate(records, city.Origin(), s.Interp)
	if err != nil {
		return nil, fmt.Errorf("heatmap for %s: %w", city.Name, err)
	}
	s.Metrics.InterpolationSeconds.Observe(time.Since(start).Seconds())
	s.Metrics.GridsInterpolated.WithLabelValues(grid.Method).Inc()

	grid.CityName = city.Slug()
	grid.RunID = s.RunID
	if err := gridstore.Save(path, grid); err != nil {
		return nil, fmt.Errorf("heatmap for %s: save grid: %w", city.Name, err)
	}
	logger.Info("grid interpolated",
		"path", path,
		"method", grid.Method,
		"samples", grid.Samples,
		"rows", grid.Rows(),
		"cols", grid.Cols(),
	)
	return grid, nil
}

func (s *HeatmapStage) write(files map[string][]byte) ([]string, error) {
	if err := os.MkdirAll(s.Paths.OutputDir, 0o755); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	written := make([]string, 0, len(names))
	for _, name := range names {
		path := s.Paths.Artifact(name)
		tmp := filepath.Join(s.Paths.OutputDir, "."+name+".tmp")
		if err := os.WriteFile(tmp, files[name], 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", name, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			return written, fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, path)
	}
	return written, nil
}
