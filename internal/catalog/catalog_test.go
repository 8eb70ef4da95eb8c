package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/commute-heatmap/internal/catalog"
	"github.com/couchcryptid/commute-heatmap/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const citiesJSON = `[
  {"name": "Leeds", "center": [53.7997, -1.5492], "districts": ["LS1", "LS2", "LS6"]},
  {"name": "London", "center": [51.5074, -0.1278], "data_file": "london_coordinates.csv"}
]`

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cities.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	c, err := catalog.Load(writeCatalog(t, citiesJSON))
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"Leeds", "London"}, c.Names())

	leeds, err := c.Find("LEEDS")
	require.NoError(t, err)
	assert.Equal(t, "leeds", leeds.Slug())
	assert.Equal(t, domain.LatLon{Lat: 53.7997, Lon: -1.5492}, leeds.Origin())
	assert.Equal(t, []string{"LS1", "LS2", "LS6"}, leeds.Districts)

	london, err := c.Find(" london ")
	require.NoError(t, err)
	assert.Equal(t, "london_coordinates.csv", london.DataFile)
}

func TestFind_Unknown(t *testing.T) {
	c, err := catalog.Load(writeCatalog(t, citiesJSON))
	require.NoError(t, err)

	_, err = c.Find("york")
	assert.True(t, errors.Is(err, catalog.ErrUnknownCity))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := catalog.Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.True(t, errors.Is(err, domain.ErrMissingInput))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `[{"name": `},
		{"missing name", `[{"center": [53.8, -1.5], "districts": ["LS1"]}]`},
		{"center wrong length", `[{"name": "Leeds", "center": [53.8], "districts": ["LS1"]}]`},
		{"center out of range", `[{"name": "Leeds", "center": [153.8, -1.5], "districts": ["LS1"]}]`},
		{"no districts or data file", `[{"name": "Leeds", "center": [53.8, -1.5]}]`},
		{"empty district", `[{"name": "Leeds", "center": [53.8, -1.5], "districts": [""]}]`},
		{"duplicate name", `[
			{"name": "Leeds", "center": [53.8, -1.5], "districts": ["LS1"]},
			{"name": "leeds", "center": [53.8, -1.5], "districts": ["LS2"]}
		]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.Load(writeCatalog(t, tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMissingInput))
		})
	}
}
