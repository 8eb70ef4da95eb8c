// Command validate checks the on-disk state of one or more cities: the
// coordinates table, the travel-time checkpoint, the interpolated grid blob
// and the rendered artifacts. It exits non-zero when any phase fails.
//
// Usage:
//
//	go run ./cmd/validate -city Leeds
//	go run ./cmd/validate -all
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/couchcryptid/commute-heatmap/internal/adapter/gridstore"
	"github.com/couchcryptid/commute-heatmap/internal/adapter/table"
	"github.com/couchcryptid/commute-heatmap/internal/catalog"
	"github.com/couchcryptid/commute-heatmap/internal/config"
	"github.com/couchcryptid/commute-heatmap/internal/domain"
	"github.com/couchcryptid/commute-heatmap/internal/pipeline"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// phase tracks pass/fail for a validation phase.
type phase struct {
	name    string
	errors  []string
	skipped bool
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	cityName := flag.String("city", "", "city name from the catalog")
	all := flag.Bool("all", false, "validate every city in the catalog")
	flag.Parse()

	if (*cityName == "") == !*all {
		flag.Usage()
		os.Exit(2)
	}

	if code := run(*cityName, *all); code != 0 {
		os.Exit(code)
	}
}

func run(cityName string, all bool) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		return 1
	}
	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load catalog: %v\n", err)
		return 1
	}

	names := []string{cityName}
	if all {
		names = cat.Names()
	}
	paths := pipeline.Paths{DataDir: cfg.DataDir, OutputDir: cfg.OutputDir}

	allPassed := true
	for _, name := range names {
		city, err := cat.Find(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			return 1
		}
		if !report(city, validateCity(city, paths)) {
			allPassed = false
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func validateCity(city catalog.City, paths pipeline.Paths) []*phase {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	coords := &phase{name: "Coordinates table"}
	points, err := table.LoadCoordinates(paths.Coordinates(city), quiet)
	if err != nil {
		coords.errorf("%v", err)
	}
	validateCoordinates(coords, points)

	checkpoint := &phase{name: "Travel-time checkpoint"}
	records, err := table.LoadTravelTimes(paths.TravelTimes(city), quiet)
	switch {
	case errors.Is(err, domain.ErrMissingInput) && !fileExists(paths.TravelTimes(city)):
		checkpoint.skipped = true
	case err != nil:
		checkpoint.errorf("%v", err)
	default:
		validateCheckpoint(checkpoint, records, points)
	}

	gridPhase := &phase{name: "Interpolated grid"}
	var grid *domain.InterpolatedGrid
	if !fileExists(paths.Grid(city)) {
		gridPhase.skipped = true
	} else if grid, err = gridstore.Load(paths.Grid(city)); err != nil {
		gridPhase.errorf("%v", err)
	} else {
		validateGrid(gridPhase, grid, city, points)
	}

	artifacts := &phase{name: "Rendered artifacts"}
	if grid == nil {
		artifacts.skipped = true
	} else {
		validateArtifacts(artifacts, city, paths)
	}

	return []*phase{coords, checkpoint, gridPhase, artifacts}
}

func validateCoordinates(p *phase, points []domain.SamplePoint) {
	if len(points) == 0 {
		p.errorf("no usable sample points")
		return
	}
	for _, pt := range points {
		switch pt.Source {
		case "", domain.SourcePostcode, domain.SourceGrid, domain.SourceCenter:
		default:
			p.errorf("point %v,%v has unknown source %q", pt.Lat, pt.Lon, pt.Source)
		}
	}
}

// validateCheckpoint requires one row per point, every row naming a point of
// the coordinates table.
func validateCheckpoint(p *phase, records []domain.TravelTimeRecord, points []domain.SamplePoint) {
	known := make(map[domain.CoordKey]bool, len(points))
	for _, pt := range points {
		known[pt.Key()] = true
	}
	seen := make(map[domain.CoordKey]bool, len(records))
	for _, r := range records {
		k := r.Key()
		if seen[k] {
			p.errorf("duplicate checkpoint row for %v,%v", r.Lat, r.Lon)
		}
		seen[k] = true
		if len(known) > 0 && !known[k] {
			p.errorf("checkpoint row %v,%v is not in the coordinates table", r.Lat, r.Lon)
		}
		if r.Valid() && *r.Minutes < 0 {
			p.errorf("negative travel time %v at %v,%v", *r.Minutes, r.Lat, r.Lon)
		}
	}
	if len(domain.ValidRecords(records)) == 0 {
		p.errorf("checkpoint has no valid travel times")
	}
}

// validateGrid relies on gridstore.Load for shape and finiteness and checks
// that the grid belongs to the city and stays inside its samples.
func validateGrid(p *phase, grid *domain.InterpolatedGrid, city catalog.City, points []domain.SamplePoint) {
	origin := city.Origin()
	if math.Abs(grid.Center.Lat-origin.Lat) > 1e-9 || math.Abs(grid.Center.Lon-origin.Lon) > 1e-9 {
		p.errorf("grid centre %v does not match catalog centre %v", grid.Center, origin)
	}
	if grid.CityName != "" && grid.CityName != city.Slug() {
		p.errorf("grid city %q, want %q", grid.CityName, city.Slug())
	}
	if len(points) == 0 {
		return
	}
	latMin, latMax := math.Inf(1), math.Inf(-1)
	lonMin, lonMax := math.Inf(1), math.Inf(-1)
	for _, pt := range points {
		latMin, latMax = math.Min(latMin, pt.Lat), math.Max(latMax, pt.Lat)
		lonMin, lonMax = math.Min(lonMin, pt.Lon), math.Max(lonMax, pt.Lon)
	}
	const tol = 1e-6
	if grid.LatAxis[0] < latMin-tol || grid.LatAxis[grid.Rows()-1] > latMax+tol {
		p.errorf("lat axis [%v, %v] exceeds samples [%v, %v]", grid.LatAxis[0], grid.LatAxis[grid.Rows()-1], latMin, latMax)
	}
	if grid.LonAxis[0] < lonMin-tol || grid.LonAxis[grid.Cols()-1] > lonMax+tol {
		p.errorf("lon axis [%v, %v] exceeds samples [%v, %v]", grid.LonAxis[0], grid.LonAxis[grid.Cols()-1], lonMin, lonMax)
	}
}

func validateArtifacts(p *phase, city catalog.City, paths pipeline.Paths) {
	slug := city.Slug()
	html, err := os.ReadFile(paths.Artifact(slug + "_heatmap.html"))
	if err != nil {
		p.errorf("%v", err)
	} else if !bytes.Contains(html, []byte("L.imageOverlay(")) {
		p.errorf("%s_heatmap.html has no image overlay", slug)
	}
	for _, name := range []string{slug + "_heatmap_raw.png", slug + "_preview.png"} {
		data, err := os.ReadFile(paths.Artifact(name))
		if errors.Is(err, os.ErrNotExist) && name == slug+"_preview.png" {
			continue
		}
		if err != nil {
			p.errorf("%v", err)
			continue
		}
		if !bytes.HasPrefix(data, pngMagic) {
			p.errorf("%s is not a PNG", name)
		}
	}
}

func report(city catalog.City, phases []*phase) bool {
	fmt.Printf("\n=== %s ===\n", city.Name)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		switch {
		case p.skipped:
			status = "\033[33mSKIP\033[0m"
		case !p.passed():
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}
	return allPassed
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
