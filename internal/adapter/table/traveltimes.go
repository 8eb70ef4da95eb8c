package table

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/commute-heatmap/internal/domain"
)

// LoadTravelTimes reads a lat,lon,travel_time_mins table. Empty or NaN travel times
// load as absent records.
func LoadTravelTimes(path string, logger *slog.Logger) ([]domain.TravelTimeRecord, error) {
	idx, rows, err := readTable(path, colLat, colLon, colMinutes)
	if err != nil {
		return nil, err
	}

	records := make([]domain.TravelTimeRecord, 0, len(rows))
	for i, row := range rows {
		lat, lon, err := parseCoord(row, idx)
		if err != nil {
			logger.Warn("skipping travel time row", "path", path, "row", i+2, "error", err)
			continue
		}
		rec := domain.TravelTimeRecord{Lat: lat, Lon: lon}
		if s := get(row, idx, colMinutes); s != "" && !strings.EqualFold(s, "nan") {
			m, err := strconv.ParseFloat(s, 64)
			if err != nil {
				logger.Warn("unparseable travel time, treating as absent", "path", path, "row", i+2, "value", s)
			} else if !math.IsNaN(m) {
				rec.Minutes = &m
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// SaveTravelTimes writes records; absent travel times are written as empty cells.
func SaveTravelTimes(path string, records []domain.TravelTimeRecord) error {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, []string{colLat, colLon, colMinutes})
	for _, r := range records {
		mins := ""
		if r.Minutes != nil {
			mins = formatFloat(*r.Minutes)
		}
		rows = append(rows, []string{formatFloat(r.Lat), formatFloat(r.Lon), mins})
	}
	if err := writeAtomic(path, rows); err != nil {
		return fmt.Errorf("save travel times: %w", err)
	}
	return nil
}

// CheckpointStore persists the fetcher's accumulated records as a CSV table.
// The whole table is rewritten on every Save.
type CheckpointStore struct {
	path   string
	logger *slog.Logger
}

// NewCheckpointStore creates a CSV checkpoint at path.
func NewCheckpointStore(path string, logger *slog.Logger) *CheckpointStore {
	return &CheckpointStore{path: path, logger: logger}
}

// Load returns the checkpointed records, or none when no checkpoint exists yet.
func (s *CheckpointStore) Load(_ context.Context) ([]domain.TravelTimeRecord, error) {
	records, err := LoadTravelTimes(s.path, s.logger)
	if errors.Is(err, domain.ErrMissingInput) && !fileExists(s.path) {
		return nil, nil
	}
	return records, err
}

// Save replaces the checkpoint with records.
func (s *CheckpointStore) Save(_ context.Context, records []domain.TravelTimeRecord) error {
	return SaveTravelTimes(s.path, records)
}

// Path returns the checkpoint file location.
func (s *CheckpointStore) Path() string { return s.path }
