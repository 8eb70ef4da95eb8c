package sampling

import (
	"fmt"
	"math/rand/v2"

	"github.com/couchcryptid/commute-heatmap/internal/domain"
	"github.com/golang/geo/s2"
	"gonum.org/v1/gonum/floats"
)

// Noise modes accepted by AddNoise.
const (
	NoiseUniform        = "uniform"
	NoiseDistanceScaled = "distance_scaled"
)

// gridSeed fixes which lattice points GridPoints keeps, so reruns over the same
// bounding box pick the same subset.
const gridSeed = 42

// EarthRadiusMeters is the mean Earth radius.
const EarthRadiusMeters = 6371000.0

// Distance returns the great-circle distance between a and b in metres.
func Distance(a, b domain.LatLon) float64 {
	return angle(a, b) * EarthRadiusMeters
}

func angle(a, b domain.LatLon) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lon)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return p1.Distance(p2).Radians()
}

// GridPoints lays a size x size lattice over the bounding box of points and
// returns a fixed-seed random fraction of it.
func GridPoints(points []domain.SamplePoint, size int, frac float64) []domain.SamplePoint {
	if len(points) == 0 || size < 1 || frac <= 0 {
		return nil
	}
	lats := make([]float64, len(points))
	lons := make([]float64, len(points))
	for i, p := range points {
		lats[i], lons[i] = p.Lat, p.Lon
	}
	latAxis := axis(floats.Min(lats), floats.Max(lats), size)
	lonAxis := axis(floats.Min(lons), floats.Max(lons), size)

	lattice := make([]domain.SamplePoint, 0, size*size)
	for _, lon := range lonAxis {
		for _, lat := range latAxis {
			lattice = append(lattice, domain.SamplePoint{Lat: lat, Lon: lon, Source: domain.SourceGrid})
		}
	}

	n := min(int(frac*float64(len(lattice))), len(lattice))
	rng := rand.New(rand.NewPCG(gridSeed, 0))
	out := make([]domain.SamplePoint, n)
	for i, j := range rng.Perm(len(lattice))[:n] {
		out[i] = lattice[j]
	}
	return out
}

func axis(lo, hi float64, n int) []float64 {
	if n == 1 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}

// CenterPoints returns n copies of the centre.
func CenterPoints(center domain.LatLon, n int) []domain.SamplePoint {
	out := make([]domain.SamplePoint, n)
	for i := range out {
		out[i] = domain.SamplePoint{Lat: center.Lat, Lon: center.Lon, Source: domain.SourceCenter}
	}
	return out
}

// AddNoise returns a jittered copy of points. In uniform mode each coordinate
// moves by up to level degrees. In distance_scaled mode the bound grows
// linearly with distance from center, reaching level at the farthest point.
func AddNoise(points []domain.SamplePoint, center domain.LatLon, mode string, level float64, rng *rand.Rand) ([]domain.SamplePoint, error) {
	scale := make([]float64, len(points))
	switch mode {
	case NoiseUniform:
		for i := range scale {
			scale[i] = level
		}
	case NoiseDistanceScaled:
		for i, p := range points {
			scale[i] = angle(center, p.LatLon())
		}
		if len(scale) > 0 {
			if far := floats.Max(scale); far > 0 {
				floats.Scale(level/far, scale)
			}
		}
	default:
		return nil, fmt.Errorf("unknown noise mode %q (want %s or %s)", mode, NoiseUniform, NoiseDistanceScaled)
	}

	out := make([]domain.SamplePoint, len(points))
	for i, p := range points {
		p.Lat += (2*rng.Float64() - 1) * scale[i]
		p.Lon += (2*rng.Float64() - 1) * scale[i]
		out[i] = p
	}
	return out, nil
}
