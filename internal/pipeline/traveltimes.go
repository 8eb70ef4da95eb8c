package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/commute-heatmap/internal/adapter/sqlite"
	"github.com/couchcryptid/commute-heatmap/internal/adapter/table"
	"github.com/couchcryptid/commute-heatmap/internal/catalog"
	"github.com/couchcryptid/commute-heatmap/internal/domain"
	"github.com/couchcryptid/commute-heatmap/internal/observability"
)

// Checkpoint backends.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// TravelTimesStage resolves travel times for a city's coordinates table.
type TravelTimesStage struct {
	Provider  domain.TravelTimeProvider
	Paths     Paths
	Backend   string
	BatchSize int
	Throttle  time.Duration
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

// Run fetches travel times from the city centre to every sample point, resuming
// from the city's checkpoint. A run that ends without a single valid travel
// time is an ErrService failure. With the sqlite backend the checkpoint is also
// exported to the travel-times table read by the heatmap stage.
func (s *TravelTimesStage) Run(ctx context.Context, city catalog.City) ([]domain.TravelTimeRecord, error) {
	logger := s.Logger.With("city", city.Slug())

	points, err := table.LoadCoordinates(s.Paths.Coordinates(city), logger)
	if err != nil {
		return nil, fmt.Errorf("travel times for %s: %w", city.Name, err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("travel times for %s: %w: coordinates table has no valid rows", city.Name, domain.ErrMissingInput)
	}

	switch s.Backend {
	case BackendSQLite:
		store, err := sqlite.Open(ctx, s.Paths.CheckpointDB(city))
		if err != nil {
			return nil, fmt.Errorf("travel times for %s: open checkpoint: %w", city.Name, err)
		}
		defer store.Close()

		valid, fetchErr := s.fetch(ctx, store, points, city, logger)
		// Export even after an interrupted fetch so the table matches the checkpoint.
		if err := s.export(context.WithoutCancel(ctx), store, city); err != nil {
			return valid, fmt.Errorf("travel times for %s: %w", city.Name, err)
		}
		return valid, fetchErr

	case BackendCSV, "":
		store := table.NewCheckpointStore(s.Paths.TravelTimes(city), logger)
		return s.fetch(ctx, store, points, city, logger)

	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", s.Backend)
	}
}

func (s *TravelTimesStage) fetch(ctx context.Context, store CheckpointStore, points []domain.SamplePoint, city catalog.City, logger *slog.Logger) ([]domain.TravelTimeRecord, error) {
	logger.Info("fetching travel times", "points", len(points), "backend", s.Backend, "batch_size", s.BatchSize)
	f := NewFetcher(s.Provider, store, logger, s.Metrics, s.BatchSize, s.Throttle)
	valid, err := f.Fetch(ctx, points, city.Origin())
	if err != nil {
		return valid, fmt.Errorf("travel times for %s: %w", city.Name, err)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("travel times for %s: %w: no valid travel times calculated", city.Name, domain.ErrService)
	}
	return valid, nil
}

// export copies every checkpointed record, absent ones included, to the CSV table.
func (s *TravelTimesStage) export(ctx context.Context, store CheckpointStore, city catalog.City) error {
	records, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("export checkpoint: %w", err)
	}
	if len(records) == 0 {
		return nil
	}
	if err := table.SaveTravelTimes(s.Paths.TravelTimes(city), records); err != nil {
		return fmt.Errorf("export checkpoint: %w", err)
	}
	return nil
}
