// Command genmock builds offline fixtures for a city without calling the
// Distance Matrix API. Travel times are derived from the great-circle distance
// to the city centre at a fixed speed plus a boarding overhead, and every
// -unroutable-every'th point is left without a travel time. The interpolated
// grid is written too, so the heatmap stage can run straight away.
//
// Usage:
//
//	go run ./cmd/genmock -city Leeds [-speed 25] [-overhead 5]
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"slices"
	"time"

	"github.com/couchcryptid/commute-heatmap/internal/adapter/gridstore"
	"github.com/couchcryptid/commute-heatmap/internal/adapter/table"
	"github.com/couchcryptid/commute-heatmap/internal/catalog"
	"github.com/couchcryptid/commute-heatmap/internal/config"
	"github.com/couchcryptid/commute-heatmap/internal/domain"
	"github.com/couchcryptid/commute-heatmap/internal/interp"
	"github.com/couchcryptid/commute-heatmap/internal/pipeline"
	"github.com/couchcryptid/commute-heatmap/internal/sampling"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cityName := flag.String("city", "", "city name from the catalog")
	speed := flag.Float64("speed", 25, "average door-to-door speed in km/h")
	overhead := flag.Float64("overhead", 5, "fixed minutes added to every trip")
	unroutableEvery := flag.Int("unroutable-every", 50, "leave every n-th point without a travel time (0 disables)")
	flag.Parse()

	if *cityName == "" {
		flag.Usage()
		return errors.New("missing required flag: -city")
	}
	if *speed <= 0 {
		return fmt.Errorf("speed %v must be positive", *speed)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return err
	}
	city, err := cat.Find(*cityName)
	if err != nil {
		return err
	}

	// Set a fixed clock for a reproducible generated_at.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	paths := pipeline.Paths{DataDir: cfg.DataDir, OutputDir: cfg.OutputDir}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	points, err := table.LoadCoordinates(paths.Coordinates(city), quiet)
	if err != nil {
		return fmt.Errorf("load coordinates: %w", err)
	}
	records := mockTravelTimes(points, city.Origin(), *speed, *overhead, *unroutableEvery)

	if err := table.SaveTravelTimes(paths.TravelTimes(city), records); err != nil {
		return err
	}
	log.Printf("wrote %d travel times: %s", len(records), paths.TravelTimes(city))

	grid, err := interp.Interpolate(records, city.Origin(), interp.Options{
		Resolution: cfg.GridResolution,
		Method:     cfg.InterpolationMethod,
		Sigma:      cfg.SmoothingSigma,
	})
	if err != nil {
		return fmt.Errorf("interpolate: %w", err)
	}
	grid.CityName = city.Slug()
	grid.RunID = "genmock"
	if err := gridstore.Save(paths.Grid(city), grid); err != nil {
		return err
	}
	log.Printf("wrote %dx%d grid: %s", grid.Rows(), grid.Cols(), paths.Grid(city))

	printStats(records)
	return nil
}

func mockTravelTimes(points []domain.SamplePoint, origin domain.LatLon, speedKmh, overheadMins float64, unroutableEvery int) []domain.TravelTimeRecord {
	metersPerMinute := speedKmh * 1000 / 60
	records := make([]domain.TravelTimeRecord, 0, len(points))
	seen := make(map[domain.CoordKey]bool, len(points))
	for i, p := range points {
		if seen[p.Key()] {
			continue
		}
		seen[p.Key()] = true
		if unroutableEvery > 0 && (i+1)%unroutableEvery == 0 {
			records = append(records, domain.AbsentRecord(p))
			continue
		}
		mins := overheadMins + sampling.Distance(origin, p.LatLon())/metersPerMinute
		records = append(records, domain.NewTravelTimeRecord(p, mins*60))
	}
	return records
}

func printStats(records []domain.TravelTimeRecord) {
	valid := domain.ValidRecords(records)
	if len(valid) == 0 {
		fmt.Println("no valid travel times")
		return
	}
	mins := make([]float64, len(valid))
	for i, r := range valid {
		mins[i] = *r.Minutes
	}
	slices.Sort(mins)

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Records: %d (%d valid, %d absent)\n", len(records), len(valid), len(records)-len(valid))
	fmt.Printf("Minutes: min=%.1f median=%.1f max=%.1f\n", mins[0], mins[len(mins)/2], mins[len(mins)-1])
}
