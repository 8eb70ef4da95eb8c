package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/commute-heatmap/internal/domain"
	"github.com/couchcryptid/commute-heatmap/internal/observability"
)

// CheckpointStore persists the fetcher's accumulated records between runs.
type CheckpointStore interface {
	// Load returns previously saved records, or none if nothing was saved yet.
	Load(ctx context.Context) ([]domain.TravelTimeRecord, error)
	// Save persists the full set of records accumulated so far.
	Save(ctx context.Context, records []domain.TravelTimeRecord) error
}

// Fetcher resolves travel times for sample points in batches, checkpointing
// after every batch so an interrupted run resumes where it stopped.
type Fetcher struct {
	provider  domain.TravelTimeProvider
	store     CheckpointStore
	logger    *slog.Logger
	metrics   *observability.Metrics
	batchSize int
	throttle  time.Duration
}

// NewFetcher creates a Fetcher. throttle is the pause between consecutive batches.
func NewFetcher(provider domain.TravelTimeProvider, store CheckpointStore, logger *slog.Logger, metrics *observability.Metrics, batchSize int, throttle time.Duration) *Fetcher {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Fetcher{
		provider:  provider,
		store:     store,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
		throttle:  throttle,
	}
}

// Fetch returns the records with a valid travel time for every point resolved so far,
// including those from earlier runs. Points already in the checkpoint are never
// requested again. A failed batch is logged and skipped; a failed checkpoint write
// or a cancelled context ends the run with an error.
func (f *Fetcher) Fetch(ctx context.Context, points []domain.SamplePoint, origin domain.LatLon) ([]domain.TravelTimeRecord, error) {
	acc, err := f.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	work := remaining(points, acc)
	if len(acc) > 0 {
		f.logger.Info("resuming from checkpoint", "processed", len(acc), "remaining", len(work))
		f.metrics.PointsTotal.WithLabelValues("resumed").Add(float64(len(acc)))
	}
	if len(work) == 0 {
		return domain.ValidRecords(acc), nil
	}

	batches := partition(work, f.batchSize)
	for i, batch := range batches {
		if i > 0 && !sleepWithContext(ctx, f.throttle) {
			return domain.ValidRecords(acc), fmt.Errorf("fetch interrupted after %d of %d batches: %w", i, len(batches), ctx.Err())
		}
		if err := ctx.Err(); err != nil {
			return domain.ValidRecords(acc), fmt.Errorf("fetch interrupted after %d of %d batches: %w", i, len(batches), err)
		}

		records, err := f.fetchBatch(ctx, origin, batch)
		if err != nil {
			f.logger.Warn("batch failed, skipping",
				"batch", i+1,
				"batches", len(batches),
				"size", len(batch),
				"error", err,
			)
			f.metrics.BatchesTotal.WithLabelValues("error").Inc()
			continue
		}

		acc = append(acc, records...)
		if err := f.store.Save(ctx, acc); err != nil {
			f.metrics.CheckpointWriteError.Inc()
			return domain.ValidRecords(acc), fmt.Errorf("save checkpoint: %w", err)
		}

		f.metrics.BatchesTotal.WithLabelValues("success").Inc()
		f.metrics.BatchSize.Observe(float64(len(batch)))
		resolved := len(domain.ValidRecords(records))
		f.metrics.PointsTotal.WithLabelValues("resolved").Add(float64(resolved))
		f.metrics.PointsTotal.WithLabelValues("absent").Add(float64(len(records) - resolved))
		f.logger.Info("saved batch",
			"batch", i+1,
			"batches", len(batches),
			"points", len(batch),
			"resolved", resolved,
		)
	}

	valid := domain.ValidRecords(acc)
	f.logger.Info("fetch complete", "records", len(acc), "valid", len(valid))
	return valid, nil
}

func (f *Fetcher) fetchBatch(ctx context.Context, origin domain.LatLon, batch []domain.SamplePoint) ([]domain.TravelTimeRecord, error) {
	records, err := f.provider.TravelTimes(ctx, origin, batch)
	if err != nil {
		return nil, err
	}
	if len(records) != len(batch) {
		return nil, fmt.Errorf("%w: got %d records for %d points", domain.ErrService, len(records), len(batch))
	}
	// Records carry the requested coordinates so checkpoint keys always match the input.
	for i := range records {
		records[i].Lat = batch[i].Lat
		records[i].Lon = batch[i].Lon
	}
	return records, nil
}

// remaining drops points already present in done and collapses duplicate points.
func remaining(points []domain.SamplePoint, done []domain.TravelTimeRecord) []domain.SamplePoint {
	seen := make(map[domain.CoordKey]struct{}, len(done)+len(points))
	for _, r := range done {
		seen[r.Key()] = struct{}{}
	}
	out := make([]domain.SamplePoint, 0, len(points))
	for _, p := range points {
		k := p.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}

func partition(points []domain.SamplePoint, size int) [][]domain.SamplePoint {
	batches := make([][]domain.SamplePoint, 0, (len(points)+size-1)/size)
	for start := 0; start < len(points); start += size {
		end := min(start+size, len(points))
		batches = append(batches, points[start:end])
	}
	return batches
}

// sleepWithContext waits d on the domain clock. It returns false if ctx ends first.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := domain.Clock().NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
