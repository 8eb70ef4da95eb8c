package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/commute-heatmap/internal/adapter/gridstore"
	"github.com/couchcryptid/commute-heatmap/internal/adapter/table"
	"github.com/couchcryptid/commute-heatmap/internal/catalog"
	"github.com/couchcryptid/commute-heatmap/internal/domain"
	"github.com/couchcryptid/commute-heatmap/internal/interp"
	"github.com/couchcryptid/commute-heatmap/internal/observability"
	"github.com/couchcryptid/commute-heatmap/internal/pipeline"
	"github.com/couchcryptid/commute-heatmap/internal/render"
	"github.com/couchcryptid/commute-heatmap/internal/sampling"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var leeds = catalog.City{
	Name:      "Leeds",
	Center:    []float64{53.7997, -1.5492},
	Districts: []string{"LS1", "LS2"},
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPaths(t *testing.T) pipeline.Paths {
	dir := t.TempDir()
	return pipeline.Paths{DataDir: filepath.Join(dir, "data"), OutputDir: filepath.Join(dir, "out")}
}

func TestPaths(t *testing.T) {
	p := pipeline.Paths{DataDir: "data", OutputDir: "preprocessing"}
	assert.Equal(t, filepath.Join("data", "leeds_coordinates.csv"), p.Coordinates(leeds))
	assert.Equal(t, filepath.Join("data", "leeds_travel_times.csv"), p.TravelTimes(leeds))
	assert.Equal(t, filepath.Join("data", "leeds_checkpoint.db"), p.CheckpointDB(leeds))
	assert.Equal(t, filepath.Join("data", "leeds_heatmap.json"), p.Grid(leeds))
	assert.Equal(t, filepath.Join("preprocessing", "leeds_heatmap.html"), p.Artifact("leeds_heatmap.html"))

	custom := leeds
	custom.DataFile = "leeds_points.csv"
	assert.Equal(t, filepath.Join("data", "leeds_points.csv"), p.Coordinates(custom))
}

// --- markers ---

type stubGeocoder struct{}

func (stubGeocoder) Search(_ context.Context, prefix string) ([]string, error) {
	return []string{prefix + " 1AA", prefix + " 2AA", prefix + " 3AA"}, nil
}

func (stubGeocoder) BulkGeocode(_ context.Context, pcs []string) ([]domain.PostcodeLocation, error) {
	out := make([]domain.PostcodeLocation, len(pcs))
	for i, pc := range pcs {
		out[i] = domain.PostcodeLocation{Postcode: pc, Lat: 53.78 + float64(i)*0.005, Lon: -1.58 + float64(i)*0.007, Found: true}
	}
	return out, nil
}

func markersStage(paths pipeline.Paths, reuse bool) *pipeline.MarkersStage {
	return &pipeline.MarkersStage{
		Sampler: sampling.NewSampler(stubGeocoder{}, discard(), 2, rand.New(rand.NewPCG(1, 1))),
		Paths:   paths,
		Augment: sampling.DefaultAugmentOptions(),
		Rand:    rand.New(rand.NewPCG(2, 2)),
		Reuse:   reuse,
		Logger:  discard(),
	}
}

func TestMarkersStage_SamplesAndSaves(t *testing.T) {
	paths := testPaths(t)

	points, err := markersStage(paths, true).Run(context.Background(), leeds)
	require.NoError(t, err)
	// 4 postcodes + 360 + 10 + 1 + 100 synthetic points.
	assert.Len(t, points, 475)

	saved, err := table.LoadCoordinates(paths.Coordinates(leeds), discard())
	require.NoError(t, err)
	assert.Len(t, saved, 475)
}

func TestMarkersStage_ReusesExistingTable(t *testing.T) {
	paths := testPaths(t)
	existing := []domain.SamplePoint{{Lat: 53.8, Lon: -1.5, Source: domain.SourcePostcode}}
	require.NoError(t, table.SaveCoordinates(paths.Coordinates(leeds), existing))

	stage := markersStage(paths, true)
	stage.Sampler = nil // must not be used
	points, err := stage.Run(context.Background(), leeds)
	require.NoError(t, err)
	assert.Equal(t, existing, points)
}

func TestMarkersStage_ResamplesWithoutReuse(t *testing.T) {
	paths := testPaths(t)
	require.NoError(t, table.SaveCoordinates(paths.Coordinates(leeds), []domain.SamplePoint{{Lat: 53.8, Lon: -1.5}}))

	points, err := markersStage(paths, false).Run(context.Background(), leeds)
	require.NoError(t, err)
	assert.Len(t, points, 475)
}

func TestMarkersStage_NoDistrictsNoTable(t *testing.T) {
	city := leeds
	city.Districts = nil
	city.DataFile = "missing.csv"

	_, err := markersStage(testPaths(t), true).Run(context.Background(), city)
	assert.True(t, errors.Is(err, domain.ErrMissingInput))
}

// --- travel times ---

func travelTimesStage(paths pipeline.Paths, backend string, p domain.TravelTimeProvider) *pipeline.TravelTimesStage {
	return &pipeline.TravelTimesStage{
		Provider:  p,
		Paths:     paths,
		Backend:   backend,
		BatchSize: 10,
		Logger:    discard(),
		Metrics:   observability.NewMetricsForTesting(),
	}
}

func TestTravelTimesStage_Backends(t *testing.T) {
	for _, backend := range []string{pipeline.BackendCSV, pipeline.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			paths := testPaths(t)
			points := makePoints(25)
			points[3].Source = "unroutable"
			require.NoError(t, table.SaveCoordinates(paths.Coordinates(leeds), points))

			provider := &mockProvider{}
			valid, err := travelTimesStage(paths, backend, provider).Run(context.Background(), leeds)
			require.NoError(t, err)
			assert.Len(t, valid, 24)
			assert.Len(t, provider.requests, 3)

			all, err := table.LoadTravelTimes(paths.TravelTimes(leeds), discard())
			require.NoError(t, err)
			assert.Len(t, all, 25, "absent records are kept in the table")

			// Second run resumes from the checkpoint and requests nothing.
			again := &mockProvider{}
			valid, err = travelTimesStage(paths, backend, again).Run(context.Background(), leeds)
			require.NoError(t, err)
			assert.Len(t, valid, 24)
			assert.Empty(t, again.requests)
		})
	}
}

func TestTravelTimesStage_NoValidTravelTimes(t *testing.T) {
	for _, backend := range []string{pipeline.BackendCSV, pipeline.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			paths := testPaths(t)
			points := makePoints(3)
			for i := range points {
				points[i].Source = "unroutable"
			}
			require.NoError(t, table.SaveCoordinates(paths.Coordinates(leeds), points))

			valid, err := travelTimesStage(paths, backend, &mockProvider{}).Run(context.Background(), leeds)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrService))
			assert.Empty(t, valid)

			all, err := table.LoadTravelTimes(paths.TravelTimes(leeds), discard())
			require.NoError(t, err)
			assert.Len(t, all, 3, "absent records are still checkpointed")
		})
	}
}

func TestTravelTimesStage_MissingCoordinates(t *testing.T) {
	_, err := travelTimesStage(testPaths(t), pipeline.BackendCSV, &mockProvider{}).Run(context.Background(), leeds)
	assert.True(t, errors.Is(err, domain.ErrMissingInput))
}

func TestTravelTimesStage_UnknownBackend(t *testing.T) {
	paths := testPaths(t)
	require.NoError(t, table.SaveCoordinates(paths.Coordinates(leeds), makePoints(2)))

	_, err := travelTimesStage(paths, "redis", &mockProvider{}).Run(context.Background(), leeds)
	assert.Error(t, err)
}

// --- heatmap ---

type recordingNotifier struct {
	events []domain.HeatmapRendered
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, e domain.HeatmapRendered) error {
	n.events = append(n.events, e)
	return n.err
}

// writePlaneTable writes a 6x6 lattice of samples whose travel time grows
// with distance north and east of the south-west corner.
func writePlaneTable(t *testing.T, path string) {
	t.Helper()
	var recs []domain.TravelTimeRecord
	for i := range 6 {
		for j := range 6 {
			m := 5 + 4*float64(i) + 3*float64(j)
			recs = append(recs, domain.TravelTimeRecord{Lat: 53.75 + 0.02*float64(i), Lon: -1.60 + 0.02*float64(j), Minutes: &m})
		}
	}
	require.NoError(t, table.SaveTravelTimes(path, recs))
}

func heatmapStage(paths pipeline.Paths, m *observability.Metrics, n pipeline.Notifier) *pipeline.HeatmapStage {
	ro := render.DefaultOptions()
	ro.Preview = false
	return &pipeline.HeatmapStage{
		Paths:    paths,
		Interp:   interp.Options{Resolution: 20, Method: interp.MethodLinear, Sigma: 1},
		Render:   ro,
		Renderer: render.NewRenderer(discard(), m),
		Notifier: n,
		RunID:    "run-42",
		Logger:   discard(),
		Metrics:  m,
	}
}

func TestHeatmapStage_InterpolatesRendersAndNotifies(t *testing.T) {
	paths := testPaths(t)
	writePlaneTable(t, paths.TravelTimes(leeds))
	m := observability.NewMetricsForTesting()
	n := &recordingNotifier{}

	written, err := heatmapStage(paths, m, n).Run(context.Background(), leeds)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		paths.Artifact("leeds_contours.geojson"),
		paths.Artifact("leeds_heatmap.html"),
		paths.Artifact("leeds_heatmap_raw.png"),
	}, written)
	for _, p := range written {
		assert.FileExists(t, p)
	}

	grid, err := gridstore.Load(paths.Grid(leeds))
	require.NoError(t, err)
	assert.Equal(t, "leeds", grid.CityName)
	assert.Equal(t, "run-42", grid.RunID)
	assert.Equal(t, 20, grid.Rows())

	require.Len(t, n.events, 1)
	assert.Equal(t, "leeds", n.events[0].City)
	assert.Equal(t, "run-42", n.events[0].RunID)
	assert.Equal(t, []string{"leeds_contours.geojson", "leeds_heatmap.html", "leeds_heatmap_raw.png"}, n.events[0].Files)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.GridsInterpolated.WithLabelValues("linear")), 0)
}

func TestHeatmapStage_ReusesGridUnlessForced(t *testing.T) {
	paths := testPaths(t)
	writePlaneTable(t, paths.TravelTimes(leeds))
	m := observability.NewMetricsForTesting()
	stage := heatmapStage(paths, m, nil)

	_, err := stage.Run(context.Background(), leeds)
	require.NoError(t, err)

	// Without the table only the stored grid can satisfy the second run.
	require.NoError(t, os.Remove(paths.TravelTimes(leeds)))
	_, err = stage.Run(context.Background(), leeds)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.GridsInterpolated.WithLabelValues("linear")), 0)

	stage.Force = true
	_, err = stage.Run(context.Background(), leeds)
	assert.True(t, errors.Is(err, domain.ErrMissingInput))
}

func TestHeatmapStage_RemovesStaleContours(t *testing.T) {
	paths := testPaths(t)
	writePlaneTable(t, paths.TravelTimes(leeds))
	stage := heatmapStage(paths, observability.NewMetricsForTesting(), nil)

	_, err := stage.Run(context.Background(), leeds)
	require.NoError(t, err)
	require.FileExists(t, paths.Artifact("leeds_contours.geojson"))

	// The plane spans roughly 5 to 40 minutes, so no level survives.
	stage.Render.Levels = []float64{90, 120}
	written, err := stage.Run(context.Background(), leeds)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		paths.Artifact("leeds_heatmap.html"),
		paths.Artifact("leeds_heatmap_raw.png"),
	}, written)
	assert.NoFileExists(t, paths.Artifact("leeds_contours.geojson"))
	assert.FileExists(t, paths.Artifact("leeds_heatmap.html"))
}

func TestHeatmapStage_NotificationFailureIsNotFatal(t *testing.T) {
	paths := testPaths(t)
	writePlaneTable(t, paths.TravelTimes(leeds))
	n := &recordingNotifier{err: errors.New("broker down")}

	_, err := heatmapStage(paths, observability.NewMetricsForTesting(), n).Run(context.Background(), leeds)
	require.NoError(t, err)
	assert.Len(t, n.events, 1)
}

func TestHeatmapStage_InsufficientData(t *testing.T) {
	paths := testPaths(t)
	m := 12.0
	require.NoError(t, table.SaveTravelTimes(paths.TravelTimes(leeds), []domain.TravelTimeRecord{
		{Lat: 53.8, Lon: -1.5, Minutes: &m},
		{Lat: 53.81, Lon: -1.51},
	}))

	written, err := heatmapStage(paths, observability.NewMetricsForTesting(), nil).Run(context.Background(), leeds)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))
	assert.Empty(t, written)
	assert.NoDirExists(t, paths.OutputDir)
}
