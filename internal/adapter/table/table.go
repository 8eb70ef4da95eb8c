// Package table reads and writes the per-city CSV tables: sample coordinates,
// travel times, and the fetcher checkpoint.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/commute-heatmap/internal/domain"
)

// Column names shared by all tables.
const (
	colLat     = "lat"
	colLon     = "lon"
	colSource  = "source"
	colMinutes = "travel_time_mins"
)

// readTable opens a CSV file and returns its header index and data rows.
// A missing file or a header without the required columns is ErrMissingInput.
func readTable(path string, required ...string) (map[string]int, [][]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("%s does not exist: %w", path, domain.ErrMissingInput)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w: %w", path, domain.ErrMissingInput, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%s is empty: %w", path, domain.ErrMissingInput)
	}

	colIdx := map[string]int{}
	for i, h := range rows[0] {
		colIdx[strings.TrimSpace(h)] = i
	}
	for _, col := range required {
		if _, ok := colIdx[col]; !ok {
			return nil, nil, fmt.Errorf("%s: expected column %q: %w", path, col, domain.ErrMissingInput)
		}
	}
	return colIdx, rows[1:], nil
}

func get(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseCoord(row []string, idx map[string]int) (lat, lon float64, err error) {
	lat, err = strconv.ParseFloat(get(row, idx, colLat), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("lat: %w", err)
	}
	lon, err = strconv.ParseFloat(get(row, idx, colLon), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("lon: %w", err)
	}
	return lat, lon, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writeAtomic writes rows to a temporary file next to path and renames it into place,
// so readers never observe a partially written table.
func writeAtomic(path string, rows [][]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
