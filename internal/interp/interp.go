// Package interp maps scattered travel-time samples onto a regular lattice.
//
// Samples are triangulated (Delaunay) and interpolated linearly or with cubic
// patches; lattice cells outside the convex hull of the samples are filled with
// the largest interpolated value, then the lattice is Gaussian-smoothed.
package interp

import (
	"fmt"
	"math"
	"sort"

	"github.com/couchcryptid/commute-heatmap/internal/domain"
	"gonum.org/v1/gonum/floats"
)

// Interpolation methods.
const (
	MethodLinear  = "linear"
	MethodCubic   = "cubic"
	MethodNearest = "nearest"
)

// MinSamples is the fewest valid records a grid can be built from.
const MinSamples = 3

// maxCells bounds the lattice size to keep memory use sane.
const maxCells = 50_000_000

// collinearTol is the unit-square distance below which samples count as lying on one line.
const collinearTol = 1e-9

// Options controls lattice resolution, interpolation method, and smoothing.
type Options struct {
	// Resolution is the number of latitude samples.
	Resolution int
	// Method is one of MethodLinear, MethodCubic, MethodNearest.
	Method string
	// Sigma is the Gaussian smoothing width in cells; 0 disables smoothing.
	Sigma float64
}

// DefaultOptions mirrors the pipeline defaults.
func DefaultOptions() Options {
	return Options{Resolution: 200, Method: MethodLinear, Sigma: 1}
}

type site struct {
	lon, lat, value float64
}

// Interpolate builds an InterpolatedGrid from records with a valid travel time.
// Records without a travel time are ignored. The longitude axis length is scaled
// by cos(center latitude) so that cells are roughly square on the ground.
func Interpolate(records []domain.TravelTimeRecord, center domain.LatLon, opts Options) (*domain.InterpolatedGrid, error) {
	if opts.Resolution < 2 {
		return nil, fmt.Errorf("resolution %d: must be at least 2", opts.Resolution)
	}
	if opts.Sigma < 0 {
		return nil, fmt.Errorf("sigma %v: must not be negative", opts.Sigma)
	}
	switch opts.Method {
	case MethodLinear, MethodCubic, MethodNearest:
	default:
		return nil, fmt.Errorf("unknown interpolation method %q", opts.Method)
	}

	valid := domain.ValidRecords(records)
	if len(valid) < MinSamples {
		return nil, fmt.Errorf("%d valid records, need %d: %w", len(valid), MinSamples, domain.ErrInsufficientData)
	}
	sites := mergeDuplicates(valid)

	lons := make([]float64, len(sites))
	lats := make([]float64, len(sites))
	vals := make([]float64, len(sites))
	for i, s := range sites {
		lons[i], lats[i], vals[i] = s.lon, s.lat, s.value
	}
	lonMin, lonMax := floats.Min(lons), floats.Max(lons)
	latMin, latMax := floats.Min(lats), floats.Max(lats)
	lonRange, latRange := lonMax-lonMin, latMax-latMin
	if lonRange <= 0 || latRange <= 0 {
		return nil, fmt.Errorf("samples span %g° lon x %g° lat: %w", lonRange, latRange, domain.ErrInsufficientData)
	}

	nLon := LonAxisLength(opts.Resolution, center.Lat, lonRange, latRange)
	if nLon*opts.Resolution > maxCells {
		return nil, fmt.Errorf("lattice of %d x %d cells exceeds limit of %d", opts.Resolution, nLon, maxCells)
	}
	lonAxis := floats.Span(make([]float64, nLon), lonMin, lonMax)
	latAxis := floats.Span(make([]float64, opts.Resolution), latMin, latMax)

	eval := newEvaluator(opts.Method, lons, lats, vals, lonMin, latMin, lonRange, latRange)

	z := make([][]float64, len(latAxis))
	for r, lat := range latAxis {
		z[r] = make([]float64, len(lonAxis))
		for c, lon := range lonAxis {
			z[r][c] = eval(lon, lat)
		}
	}

	if err := fillUndefined(z); err != nil {
		return nil, err
	}
	z = gaussianSmooth(z, opts.Sigma)

	grid := &domain.InterpolatedGrid{
		Center:      center,
		GridZ:       z,
		LonAxis:     lonAxis,
		LatAxis:     latAxis,
		Method:      opts.Method,
		Sigma:       opts.Sigma,
		Samples:     len(valid),
		GeneratedAt: domain.Clock().Now().UTC(),
	}
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("interpolated grid: %w", err)
	}
	return grid, nil
}

// LonAxisLength returns the number of longitude samples for a lattice with
// resolution latitude samples: round(resolution * cos(lat) * lonRange/latRange),
// at least 2.
func LonAxisLength(resolution int, centerLat, lonRange, latRange float64) int {
	aspect := math.Cos(centerLat * math.Pi / 180)
	n := int(math.Round(float64(resolution) * aspect * lonRange / latRange))
	return max(n, 2)
}

// newEvaluator returns the interpolant as a function of (lon, lat).
func newEvaluator(method string, lons, lats, vals []float64, lonMin, latMin, lonRange, latRange float64) func(lon, lat float64) float64 {
	norm := func(lon, lat float64) vec2 {
		return vec2{(lon - lonMin) / lonRange, (lat - latMin) / latRange}
	}
	pts := make([]vec2, len(lons))
	for i := range lons {
		pts[i] = norm(lons[i], lats[i])
	}

	var s surface
	switch method {
	case MethodNearest:
		s = &nearestSurface{pts: pts, values: vals}
	default:
		var tr *triangulation
		if !collinear(pts, collinearTol) {
			tr = delaunay(pts)
		}
		if tr == nil || len(tr.tris) == 0 {
			idw := &idwSurface{lons: lons, lats: lats, values: vals}
			return idw.atLonLat
		}
		if method == MethodCubic {
			s = newCubicSurface(tr, vals)
		} else {
			s = &linearSurface{tr: tr, values: vals}
		}
	}
	return func(lon, lat float64) float64 {
		return s.at(norm(lon, lat))
	}
}

// mergeDuplicates collapses records at the same coordinates into one site
// carrying their mean travel time. Output order is deterministic.
func mergeDuplicates(records []domain.TravelTimeRecord) []site {
	type acc struct {
		lon, lat, sum float64
		n             int
	}
	byKey := map[domain.CoordKey]*acc{}
	var order []domain.CoordKey
	for _, r := range records {
		k := r.Key()
		a, ok := byKey[k]
		if !ok {
			a = &acc{lon: r.Lon, lat: r.Lat}
			byKey[k] = a
			order = append(order, k)
		}
		a.sum += *r.Minutes
		a.n++
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].Lon != order[j].Lon {
			return order[i].Lon < order[j].Lon
		}
		return order[i].Lat < order[j].Lat
	})
	out := make([]site, len(order))
	for i, k := range order {
		a := byKey[k]
		out[i] = site{lon: a.lon, lat: a.lat, value: a.sum / float64(a.n)}
	}
	return out
}

// fillUndefined replaces NaN cells with the largest defined value.
func fillUndefined(z [][]float64) error {
	hi := math.Inf(-1)
	for _, row := range z {
		for _, v := range row {
			if !math.IsNaN(v) && v > hi {
				hi = v
			}
		}
	}
	if math.IsInf(hi, -1) {
		return fmt.Errorf("no lattice cell inside the sample hull: %w", domain.ErrInsufficientData)
	}
	for _, row := range z {
		for c, v := range row {
			if math.IsNaN(v) {
				row[c] = hi
			}
		}
	}
	return nil
}
