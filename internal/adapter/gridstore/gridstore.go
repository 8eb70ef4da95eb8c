// Package gridstore persists interpolated grids as JSON blobs, the single source
// the renderer reads from.
package gridstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/couchcryptid/commute-heatmap/internal/domain"
)

var requiredKeys = []string{"city_name", "center", "grid_z", "lon_lin", "lat_lin"}

// Save validates the grid and writes it to path, replacing any previous blob.
func Save(path string, grid *domain.InterpolatedGrid) error {
	if err := grid.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid grid: %w", err)
	}
	data, err := json.Marshal(grid)
	if err != nil {
		return fmt.Errorf("encode grid: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads a grid blob. A missing file, missing keys, or a grid that breaks
// the shape and finiteness invariants is reported as ErrMissingInput.
func Load(path string) (*domain.InterpolatedGrid, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s does not exist: %w", path, domain.ErrMissingInput)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, domain.ErrMissingInput, err)
	}
	for _, k := range requiredKeys {
		if _, ok := keys[k]; !ok {
			return nil, fmt.Errorf("%s: missing key %q: %w", path, k, domain.ErrMissingInput)
		}
	}

	var grid domain.InterpolatedGrid
	if err := json.Unmarshal(data, &grid); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, domain.ErrMissingInput, err)
	}
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, domain.ErrMissingInput, err)
	}
	return &grid, nil
}
