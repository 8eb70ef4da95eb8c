package pipeline

import (
	"path/filepath"

	"github.com/couchcryptid/commute-heatmap/internal/catalog"
)

// Paths names the per-city files the stages read and write.
type Paths struct {
	DataDir   string
	OutputDir string
}

// Coordinates is the sample point table. A catalog data_file overrides the default name.
func (p Paths) Coordinates(city catalog.City) string {
	if city.DataFile != "" {
		return filepath.Join(p.DataDir, city.DataFile)
	}
	return filepath.Join(p.DataDir, city.Slug()+"_coordinates.csv")
}

// TravelTimes is the CSV checkpoint and the heatmap stage's input.
func (p Paths) TravelTimes(city catalog.City) string {
	return filepath.Join(p.DataDir, city.Slug()+"_travel_times.csv")
}

// CheckpointDB is the checkpoint used by the sqlite backend.
func (p Paths) CheckpointDB(city catalog.City) string {
	return filepath.Join(p.DataDir, city.Slug()+"_checkpoint.db")
}

// Grid is the persisted interpolated grid.
func (p Paths) Grid(city catalog.City) string {
	return filepath.Join(p.DataDir, city.Slug()+"_heatmap.json")
}

// Artifact is a rendered output file.
func (p Paths) Artifact(name string) string {
	return filepath.Join(p.OutputDir, name)
}
