package table

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/commute-heatmap/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func minutes(v float64) *float64 { return &v }

func TestLoadCoordinates(t *testing.T) {
	path := writeFile(t, "leeds_coordinates.csv",
		"postcode,lat,lon,source\n"+
			"LS1 1AA,53.79,-1.54,postcode\n"+
			"grid,not-a-number,-1.5,grid\n"+
			"grid,95,-1.5,grid\n"+
			"center,53.8,-1.55,center\n")

	points, err := LoadCoordinates(path, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, []domain.SamplePoint{
		{Lat: 53.79, Lon: -1.54, Source: "postcode"},
		{Lat: 53.8, Lon: -1.55, Source: "center"},
	}, points)
}

func TestLoadCoordinates_MissingInput(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCoordinates(filepath.Join(t.TempDir(), "nope.csv"), discardLogger())
		assert.True(t, errors.Is(err, domain.ErrMissingInput))
	})
	t.Run("missing lon column", func(t *testing.T) {
		path := writeFile(t, "bad.csv", "lat,longitude\n1,2\n")
		_, err := LoadCoordinates(path, discardLogger())
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrMissingInput))
		assert.Contains(t, err.Error(), `"lon"`)
	})
	t.Run("empty file", func(t *testing.T) {
		path := writeFile(t, "empty.csv", "")
		_, err := LoadCoordinates(path, discardLogger())
		assert.True(t, errors.Is(err, domain.ErrMissingInput))
	})
}

func TestCoordinates_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "coords.csv")
	in := []domain.SamplePoint{
		{Lat: 53.123456, Lon: -1.654321, Source: "grid"},
		{Lat: 53.8, Lon: -1.55, Source: "center"},
	}
	require.NoError(t, SaveCoordinates(path, in))

	out, err := LoadCoordinates(path, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoadTravelTimes_AbsentValues(t *testing.T) {
	path := writeFile(t, "tt.csv",
		"lat,lon,travel_time_mins\n"+
			"53.79,-1.54,12.5\n"+
			"53.80,-1.55,\n"+
			"53.81,-1.56,NaN\n"+
			"53.82,-1.57,soon\n")

	records, err := LoadTravelTimes(path, discardLogger())
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.True(t, records[0].Valid())
	assert.InDelta(t, 12.5, *records[0].Minutes, 0)
	for _, r := range records[1:] {
		assert.Nil(t, r.Minutes)
	}
}

func TestCheckpointStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "leeds_travel_times.csv")
	store := NewCheckpointStore(path, discardLogger())

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	records := []domain.TravelTimeRecord{
		{Lat: 53.79, Lon: -1.54, Minutes: minutes(10)},
		{Lat: 53.80, Lon: -1.55},
	}
	require.NoError(t, store.Save(ctx, records))

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(records, loaded); diff != "" {
		t.Errorf("checkpoint mismatch (-want +got):\n%s", diff)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestCheckpointStore_CorruptHeader(t *testing.T) {
	path := writeFile(t, "cp.csv", "a,b\n1,2\n")
	_, err := NewCheckpointStore(path, discardLogger()).Load(context.Background())
	assert.True(t, errors.Is(err, domain.ErrMissingInput))
}
