package render

import (
	"math"
	"sort"

	"github.com/couchcryptid/commute-heatmap/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// splitLevels separates levels inside [lo, hi] from those outside it.
// Kept levels are sorted and de-duplicated.
func splitLevels(levels []float64, lo, hi float64) (kept, dropped []float64) {
	seen := map[float64]bool{}
	for _, l := range levels {
		if math.IsNaN(l) || l < lo || l > hi {
			dropped = append(dropped, l)
			continue
		}
		if !seen[l] {
			seen[l] = true
			kept = append(kept, l)
		}
	}
	sort.Float64s(kept)
	return kept, dropped
}

// contourCollection traces every level over the grid into a FeatureCollection with
// one MultiLineString feature per level that produced any line.
func contourCollection(grid *domain.InterpolatedGrid, levels []float64) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, level := range levels {
		lines := traceLevel(grid, level)
		if len(lines) == 0 {
			continue
		}
		f := geojson.NewFeature(lines)
		f.Properties["level"] = level
		fc.Append(f)
	}
	return fc
}

// edgeKey names a lattice edge: the edge leaving node (r, c) eastward (vertical=false)
// or northward (vertical=true).
type edgeKey struct {
	r, c     int
	vertical bool
}

// traceLevel extracts the iso-lines of level by marching squares and stitches
// the cell segments into polylines in (lon, lat).
func traceLevel(grid *domain.InterpolatedGrid, level float64) orb.MultiLineString {
	z := grid.GridZ
	rows, cols := len(z), len(z[0])
	above := func(r, c int) bool { return z[r][c] >= level }

	var segs [][2]edgeKey
	for r := 0; r < rows-1; r++ {
		for c := 0; c < cols-1; c++ {
			sw, se, ne, nw := above(r, c), above(r, c+1), above(r+1, c+1), above(r+1, c)
			bottom := edgeKey{r, c, false}
			right := edgeKey{r, c + 1, true}
			top := edgeKey{r + 1, c, false}
			left := edgeKey{r, c, true}

			var crossed []edgeKey
			if sw != se {
				crossed = append(crossed, bottom)
			}
			if se != ne {
				crossed = append(crossed, right)
			}
			if ne != nw {
				crossed = append(crossed, top)
			}
			if nw != sw {
				crossed = append(crossed, left)
			}

			switch len(crossed) {
			case 2:
				segs = append(segs, [2]edgeKey{crossed[0], crossed[1]})
			case 4:
				// Saddle: resolve with the cell-centre average.
				centre := (z[r][c]+z[r][c+1]+z[r+1][c+1]+z[r+1][c])/4 >= level
				if sw == centre {
					// SE and NW corners are cut off.
					segs = append(segs, [2]edgeKey{bottom, right}, [2]edgeKey{top, left})
				} else {
					// SW and NE corners are cut off.
					segs = append(segs, [2]edgeKey{left, bottom}, [2]edgeKey{right, top})
				}
			}
		}
	}

	return stitch(segs, func(k edgeKey) orb.Point { return crossing(grid, k, level) })
}

// crossing locates the level crossing on an edge by linear interpolation along the axis.
func crossing(grid *domain.InterpolatedGrid, k edgeKey, level float64) orb.Point {
	z := grid.GridZ
	if k.vertical {
		a, b := z[k.r][k.c], z[k.r+1][k.c]
		f := (level - a) / (b - a)
		lat := grid.LatAxis[k.r] + f*(grid.LatAxis[k.r+1]-grid.LatAxis[k.r])
		return orb.Point{grid.LonAxis[k.c], lat}
	}
	a, b := z[k.r][k.c], z[k.r][k.c+1]
	f := (level - a) / (b - a)
	lon := grid.LonAxis[k.c] + f*(grid.LonAxis[k.c+1]-grid.LonAxis[k.c])
	return orb.Point{lon, grid.LatAxis[k.r]}
}

// stitch joins segments sharing an edge crossing into polylines.
func stitch(segs [][2]edgeKey, point func(edgeKey) orb.Point) orb.MultiLineString {
	byEdge := make(map[edgeKey][]int, 2*len(segs))
	for i, s := range segs {
		byEdge[s[0]] = append(byEdge[s[0]], i)
		byEdge[s[1]] = append(byEdge[s[1]], i)
	}
	used := make([]bool, len(segs))

	next := func(from edgeKey, via int) (edgeKey, bool) {
		for _, j := range byEdge[from] {
			if j == via || used[j] {
				continue
			}
			used[j] = true
			if segs[j][0] == from {
				return segs[j][1], true
			}
			return segs[j][0], true
		}
		return edgeKey{}, false
	}

	var out orb.MultiLineString
	for i, s := range segs {
		if used[i] {
			continue
		}
		used[i] = true
		chain := []edgeKey{s[0], s[1]}
		for k, ok := next(s[1], i); ok; k, ok = next(k, -1) {
			chain = append(chain, k)
		}
		var back []edgeKey
		for k, ok := next(s[0], i); ok; k, ok = next(k, -1) {
			back = append(back, k)
		}
		for l, r := 0, len(back)-1; l < r; l, r = l+1, r-1 {
			back[l], back[r] = back[r], back[l]
		}
		chain = append(back, chain...)

		line := make(orb.LineString, len(chain))
		for j, k := range chain {
			line[j] = point(k)
		}
		out = append(out, line)
	}
	return out
}
