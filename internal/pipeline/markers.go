package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/couchcryptid/commute-heatmap/internal/adapter/table"
	"github.com/couchcryptid/commute-heatmap/internal/catalog"
	"github.com/couchcryptid/commute-heatmap/internal/domain"
	"github.com/couchcryptid/commute-heatmap/internal/sampling"
)

// MarkersStage produces a city's coordinates table.
type MarkersStage struct {
	Sampler *sampling.Sampler
	Paths   Paths
	Augment sampling.AugmentOptions
	Rand    *rand.Rand
	// Reuse loads an existing valid coordinates table instead of resampling.
	Reuse  bool
	Logger *slog.Logger
}

// Run returns the city's sample points, writing them to the coordinates table
// when they were freshly sampled.
func (s *MarkersStage) Run(ctx context.Context, city catalog.City) ([]domain.SamplePoint, error) {
	path := s.Paths.Coordinates(city)
	logger := s.Logger.With("city", city.Slug(), "path", path)

	if s.Reuse {
		points, err := table.LoadCoordinates(path, logger)
		if err == nil && len(points) > 0 {
			logger.Info("loaded existing coordinates", "points", len(points))
			return points, nil
		}
		if _, statErr := os.Stat(path); statErr == nil {
			logger.Warn("existing coordinates unusable, resampling", "error", err)
		}
	}

	if len(city.Districts) == 0 {
		return nil, fmt.Errorf("markers for %s: %w: no districts to sample and no coordinates at %s", city.Name, domain.ErrMissingInput, path)
	}

	points, err := s.Sampler.Sample(ctx, city.Districts)
	if err != nil {
		return nil, fmt.Errorf("markers for %s: %w", city.Name, err)
	}
	points, err = sampling.Augment(points, city.Origin(), s.Augment, s.Rand)
	if err != nil {
		return nil, fmt.Errorf("markers for %s: %w", city.Name, err)
	}

	if err := table.SaveCoordinates(path, points); err != nil {
		return nil, fmt.Errorf("markers for %s: %w", city.Name, err)
	}
	logger.Info("coordinates generated", "points", len(points))
	return points, nil
}
