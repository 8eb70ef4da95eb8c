package table

import (
	"fmt"
	"log/slog"

	"github.com/couchcryptid/commute-heatmap/internal/domain"
)

// LoadCoordinates reads a city's sample points. The table must have lat and lon
// columns; source is optional. Rows that fail to parse or validate are skipped.
func LoadCoordinates(path string, logger *slog.Logger) ([]domain.SamplePoint, error) {
	idx, rows, err := readTable(path, colLat, colLon)
	if err != nil {
		return nil, err
	}

	points := make([]domain.SamplePoint, 0, len(rows))
	for i, row := range rows {
		lat, lon, err := parseCoord(row, idx)
		if err == nil {
			var p domain.SamplePoint
			p, err = domain.NewSamplePoint(lat, lon, get(row, idx, colSource))
			if err == nil {
				points = append(points, p)
				continue
			}
		}
		logger.Warn("skipping coordinate row", "path", path, "row", i+2, "error", err)
	}
	logger.Info("loaded coordinates", "path", path, "count", len(points))
	return points, nil
}

// SaveCoordinates writes sample points with lat, lon and source columns.
func SaveCoordinates(path string, points []domain.SamplePoint) error {
	rows := make([][]string, 0, len(points)+1)
	rows = append(rows, []string{colLat, colLon, colSource})
	for _, p := range points {
		rows = append(rows, []string{formatFloat(p.Lat), formatFloat(p.Lon), p.Source})
	}
	if err := writeAtomic(path, rows); err != nil {
		return fmt.Errorf("save coordinates: %w", err)
	}
	return nil
}
