package domain

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
)

// InterpolatedGrid is the regular lattice of travel times for one city.
// GridZ is indexed [row][col] with rows following LatAxis and columns LonAxis.
type InterpolatedGrid struct {
	CityName    string      `json:"city_name"`
	Center      LatLon      `json:"center"`
	GridZ       [][]float64 `json:"grid_z"`
	LonAxis     []float64   `json:"lon_lin"`
	LatAxis     []float64   `json:"lat_lin"`
	Method      string      `json:"method,omitempty"`
	Sigma       float64     `json:"sigma,omitempty"`
	Samples     int         `json:"samples,omitempty"`
	RunID       string      `json:"run_id,omitempty"`
	GeneratedAt time.Time   `json:"generated_at,omitempty"`
}

// Validate checks the shape and finiteness invariants of the grid.
func (g *InterpolatedGrid) Validate() error {
	if g == nil {
		return errors.New("grid is nil")
	}
	if len(g.LatAxis) < 2 || len(g.LonAxis) < 2 {
		return fmt.Errorf("grid axes too short: %d lat x %d lon", len(g.LatAxis), len(g.LonAxis))
	}
	if len(g.GridZ) != len(g.LatAxis) {
		return fmt.Errorf("grid has %d rows, lat axis has %d", len(g.GridZ), len(g.LatAxis))
	}
	for r, row := range g.GridZ {
		if len(row) != len(g.LonAxis) {
			return fmt.Errorf("grid row %d has %d columns, lon axis has %d", r, len(row), len(g.LonAxis))
		}
		for c, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("grid cell (%d,%d) is not finite", r, c)
			}
		}
	}
	if !ascending(g.LatAxis) {
		return errors.New("lat axis is not ascending")
	}
	if !ascending(g.LonAxis) {
		return errors.New("lon axis is not ascending")
	}
	return nil
}

// Rows returns the number of latitude samples.
func (g *InterpolatedGrid) Rows() int { return len(g.LatAxis) }

// Cols returns the number of longitude samples.
func (g *InterpolatedGrid) Cols() int { return len(g.LonAxis) }

// Range returns the minimum and maximum cell values.
func (g *InterpolatedGrid) Range() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, row := range g.GridZ {
		for _, v := range row {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	return lo, hi
}

// Bounds returns the geographic extent of the lattice.
func (g *InterpolatedGrid) Bounds() orb.Bound {
	return orb.Bound{
		Min: orb.Point{g.LonAxis[0], g.LatAxis[0]},
		Max: orb.Point{g.LonAxis[len(g.LonAxis)-1], g.LatAxis[len(g.LatAxis)-1]},
	}
}

// Dims, Z, X and Y satisfy gonum/plot's plotter.GridXYZ.

// Dims returns the number of columns and rows.
func (g *InterpolatedGrid) Dims() (c, r int) { return len(g.LonAxis), len(g.LatAxis) }

// Z returns the cell at column c, row r.
func (g *InterpolatedGrid) Z(c, r int) float64 { return g.GridZ[r][c] }

// X returns the longitude of column c.
func (g *InterpolatedGrid) X(c int) float64 { return g.LonAxis[c] }

// Y returns the latitude of row r.
func (g *InterpolatedGrid) Y(r int) float64 { return g.LatAxis[r] }

func ascending(xs []float64) bool {
	for i := 1; i < len(xs); i++ {
		if !(xs[i] > xs[i-1]) {
			return false
		}
	}
	return true
}
