package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/commute-heatmap/internal/domain"
	"github.com/couchcryptid/commute-heatmap/internal/observability"
	"github.com/couchcryptid/commute-heatmap/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockProvider struct {
	mu       sync.Mutex
	requests [][]domain.SamplePoint
	failOn   map[int]error // 1-based request number
	onCall   func(n int)
}

func (m *mockProvider) TravelTimes(_ context.Context, _ domain.LatLon, dests []domain.SamplePoint) ([]domain.TravelTimeRecord, error) {
	m.mu.Lock()
	m.requests = append(m.requests, dests)
	n := len(m.requests)
	m.mu.Unlock()

	if m.onCall != nil {
		m.onCall(n)
	}
	if err := m.failOn[n]; err != nil {
		return nil, err
	}
	out := make([]domain.TravelTimeRecord, len(dests))
	for i, d := range dests {
		if d.Source == "unroutable" {
			out[i] = domain.AbsentRecord(d)
			continue
		}
		out[i] = domain.NewTravelTimeRecord(d, 60*(d.Lat-50)*100)
	}
	return out, nil
}

func (m *mockProvider) requestedPoints() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		n += len(r)
	}
	return n
}

type memStore struct {
	records []domain.TravelTimeRecord
	saves   int
	saveErr error
}

func (s *memStore) Load(_ context.Context) ([]domain.TravelTimeRecord, error) {
	return append([]domain.TravelTimeRecord(nil), s.records...), nil
}

func (s *memStore) Save(_ context.Context, records []domain.TravelTimeRecord) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.records = append([]domain.TravelTimeRecord(nil), records...)
	return nil
}

var origin = domain.LatLon{Lat: 53.7997, Lon: -1.5492}

func makePoints(n int) []domain.SamplePoint {
	pts := make([]domain.SamplePoint, n)
	for i := range pts {
		pts[i] = domain.SamplePoint{Lat: 53.7 + float64(i)*0.001, Lon: -1.5, Source: domain.SourceGrid}
	}
	return pts
}

func newFetcher(p domain.TravelTimeProvider, s pipeline.CheckpointStore, batchSize int) *pipeline.Fetcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return pipeline.NewFetcher(p, s, logger, observability.NewMetricsForTesting(), batchSize, 0)
}

func assertUniqueKeys(t *testing.T, records []domain.TravelTimeRecord) {
	t.Helper()
	seen := map[domain.CoordKey]bool{}
	for _, r := range records {
		require.False(t, seen[r.Key()], "duplicate checkpoint row for %v,%v", r.Lat, r.Lon)
		seen[r.Key()] = true
	}
}

// --- tests ---

func TestFetcher_Fetch_AllBatches(t *testing.T) {
	points := makePoints(7)
	points[3].Source = "unroutable"
	provider := &mockProvider{}
	store := &memStore{}

	got, err := newFetcher(provider, store, 3).Fetch(context.Background(), points, origin)
	require.NoError(t, err)

	assert.Len(t, provider.requests, 3)
	assert.Equal(t, []int{3, 3, 1}, []int{len(provider.requests[0]), len(provider.requests[1]), len(provider.requests[2])})
	assert.Len(t, got, 6, "absent travel times are dropped from the result")
	assert.Len(t, store.records, 7, "absent travel times stay in the checkpoint")
	assert.Equal(t, 3, store.saves, "checkpoint is persisted after every batch")
	for _, r := range got {
		assert.True(t, r.Valid())
	}
}

func TestFetcher_Fetch_Idempotent(t *testing.T) {
	points := makePoints(10)
	store := &memStore{}

	first := &mockProvider{}
	_, err := newFetcher(first, store, 4).Fetch(context.Background(), points, origin)
	require.NoError(t, err)
	snapshot := append([]domain.TravelTimeRecord(nil), store.records...)

	second := &mockProvider{}
	got, err := newFetcher(second, store, 4).Fetch(context.Background(), points, origin)
	require.NoError(t, err)

	assert.Empty(t, second.requests, "second run must not query the service")
	assert.Equal(t, snapshot, store.records)
	assert.Len(t, got, 10)
	assertUniqueKeys(t, store.records)
}

func TestFetcher_Fetch_ResumesAfterInterruption(t *testing.T) {
	const batchSize, total = 5, 20 // M = 4 batches
	points := makePoints(total)
	store := &memStore{}

	ctx, cancel := context.WithCancel(context.Background())
	interrupted := &mockProvider{onCall: func(n int) {
		if n == 2 {
			cancel() // stop after N = 2 batches
		}
	}}
	_, err := newFetcher(interrupted, store, batchSize).Fetch(ctx, points, origin)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, store.records, 2*batchSize)

	resumed := &mockProvider{}
	got, err := newFetcher(resumed, store, batchSize).Fetch(context.Background(), points, origin)
	require.NoError(t, err)

	assert.Len(t, resumed.requests, 2)
	assert.Equal(t, (4-2)*batchSize, resumed.requestedPoints())
	assert.Len(t, got, total)
	assertUniqueKeys(t, store.records)
}

func TestFetcher_Fetch_SkipsFailedBatch(t *testing.T) {
	points := makePoints(6)
	provider := &mockProvider{failOn: map[int]error{
		2: fmt.Errorf("distance matrix: %w: status 500", domain.ErrService),
	}}
	store := &memStore{}
	metrics := observability.NewMetricsForTesting()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	got, err := pipeline.NewFetcher(provider, store, logger, metrics, 2, 0).Fetch(context.Background(), points, origin)
	require.NoError(t, err)
	assert.Len(t, provider.requests, 3, "processing continues after a failed batch")
	assert.Len(t, got, 4)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.BatchesTotal.WithLabelValues("error")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.BatchesTotal.WithLabelValues("success")), 0)

	t.Run("failed points are retried on the next run", func(t *testing.T) {
		retry := &mockProvider{}
		got, err := newFetcher(retry, store, 2).Fetch(context.Background(), points, origin)
		require.NoError(t, err)
		require.Len(t, retry.requests, 1)
		assert.Equal(t, points[2:4], retry.requests[0])
		assert.Len(t, got, 6)
	})
}

func TestFetcher_Fetch_CheckpointWriteFailureIsFatal(t *testing.T) {
	provider := &mockProvider{}
	store := &memStore{saveErr: errors.New("disk full")}

	_, err := newFetcher(provider, store, 2).Fetch(context.Background(), makePoints(6), origin)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save checkpoint")
	assert.Len(t, provider.requests, 1)
}

func TestFetcher_Fetch_DeduplicatesInput(t *testing.T) {
	points := makePoints(3)
	points = append(points, points[0], domain.SamplePoint{Lat: points[1].Lat + 1e-9, Lon: points[1].Lon})
	provider := &mockProvider{}
	store := &memStore{}

	_, err := newFetcher(provider, store, 25).Fetch(context.Background(), points, origin)
	require.NoError(t, err)
	assert.Equal(t, 3, provider.requestedPoints())
	assertUniqueKeys(t, store.records)
}

func TestFetcher_Fetch_RecordCountMismatchSkipsBatch(t *testing.T) {
	short := providerFunc(func(_ context.Context, _ domain.LatLon, dests []domain.SamplePoint) ([]domain.TravelTimeRecord, error) {
		return []domain.TravelTimeRecord{domain.NewTravelTimeRecord(dests[0], 60)}, nil
	})
	store := &memStore{}

	got, err := newFetcher(short, store, 2).Fetch(context.Background(), makePoints(2), origin)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, store.records)
}

func TestFetcher_Fetch_ThrottlesBetweenBatches(t *testing.T) {
	fakeClock := clockwork.NewFakeClock()
	domain.SetClock(fakeClock)
	t.Cleanup(func() { domain.SetClock(nil) })

	provider := &mockProvider{}
	store := &memStore{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := pipeline.NewFetcher(provider, store, logger, observability.NewMetricsForTesting(), 2, 100*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctx, makePoints(4), origin)
		done <- err
	}()

	require.NoError(t, fakeClock.BlockUntilContext(ctx, 1))
	assert.Equal(t, 2, provider.requestedPoints(), "second batch waits for the throttle")
	fakeClock.Advance(100 * time.Millisecond)

	require.NoError(t, <-done)
	assert.Equal(t, 4, provider.requestedPoints())
}

type providerFunc func(ctx context.Context, origin domain.LatLon, dests []domain.SamplePoint) ([]domain.TravelTimeRecord, error)

func (f providerFunc) TravelTimes(ctx context.Context, origin domain.LatLon, dests []domain.SamplePoint) ([]domain.TravelTimeRecord, error) {
	return f(ctx, origin, dests)
}
