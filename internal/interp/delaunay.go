package interp

import (
	"math"
	"slices"
)

type vec2 struct{ x, y float64 }

type triangle struct {
	v      [3]int // counter-clockwise
	cx, cy float64
	r2     float64
}

// triangulation is a Delaunay triangulation of points in the unit square.
type triangulation struct {
	pts  []vec2
	tris []triangle

	// Uniform bucket index over the unit square for point location.
	nb      int
	buckets [][]int
}

// minArea is the smallest triangle area (in unit-square coordinates) kept in a
// triangulation; slivers below it carry no interpolation information.
const minArea = 1e-14

// delaunay triangulates pts with the Bowyer-Watson algorithm. Points must be
// distinct. Collinear input yields a triangulation with no triangles.
func delaunay(pts []vec2) *triangulation {
	n := len(pts)
	all := make([]vec2, n, n+3)
	copy(all, pts)
	const m = 1000.0
	all = append(all, vec2{0.5 - 2*m, -m}, vec2{0.5 + 2*m, -m}, vec2{0.5, 2 * m})

	tris := []triangle{newTriangle(all, n, n+1, n+2)}
	for i := 0; i < n; i++ {
		p := all[i]
		edges := map[[2]int]int{}
		kept := tris[:0]
		for _, t := range tris {
			dx, dy := p.x-t.cx, p.y-t.cy
			if dx*dx+dy*dy < t.r2 {
				for k := 0; k < 3; k++ {
					a, b := t.v[k], t.v[(k+1)%3]
					if a > b {
						a, b = b, a
					}
					edges[[2]int{a, b}]++
				}
				continue
			}
			kept = append(kept, t)
		}
		tris = kept
		boundary := make([][2]int, 0, len(edges))
		for e, count := range edges {
			if count == 1 {
				boundary = append(boundary, e)
			}
		}
		// Map order is random; sort so the triangulation is reproducible.
		slices.SortFunc(boundary, func(a, b [2]int) int {
			if a[0] != b[0] {
				return a[0] - b[0]
			}
			return a[1] - b[1]
		})
		for _, e := range boundary {
			tris = append(tris, newTriangle(all, e[0], e[1], i))
		}
	}

	tr := &triangulation{pts: pts}
	for _, t := range tris {
		if t.v[0] >= n || t.v[1] >= n || t.v[2] >= n {
			continue
		}
		if area(pts[t.v[0]], pts[t.v[1]], pts[t.v[2]]) < minArea {
			continue
		}
		tr.tris = append(tr.tris, t)
	}
	tr.index()
	return tr
}

func newTriangle(pts []vec2, a, b, c int) triangle {
	if cross(pts[a], pts[b], pts[c]) < 0 {
		b, c = c, b
	}
	t := triangle{v: [3]int{a, b, c}}
	pa, pb, pc := pts[a], pts[b], pts[c]
	d := 2 * (pa.x*(pb.y-pc.y) + pb.x*(pc.y-pa.y) + pc.x*(pa.y-pb.y))
	if d == 0 {
		t.r2 = math.Inf(1)
		return t
	}
	sa := pa.x*pa.x + pa.y*pa.y
	sb := pb.x*pb.x + pb.y*pb.y
	sc := pc.x*pc.x + pc.y*pc.y
	t.cx = (sa*(pb.y-pc.y) + sb*(pc.y-pa.y) + sc*(pa.y-pb.y)) / d
	t.cy = (sa*(pc.x-pb.x) + sb*(pa.x-pc.x) + sc*(pb.x-pa.x)) / d
	dx, dy := pa.x-t.cx, pa.y-t.cy
	t.r2 = dx*dx + dy*dy
	return t
}

func cross(a, b, c vec2) float64 {
	return (b.x-a.x)*(c.y-a.y) - (b.y-a.y)*(c.x-a.x)
}

func area(a, b, c vec2) float64 {
	return math.Abs(cross(a, b, c)) / 2
}

func (tr *triangulation) index() {
	nb := int(math.Ceil(math.Sqrt(float64(len(tr.tris)))))
	nb = max(1, min(nb, 256))
	tr.nb = nb
	tr.buckets = make([][]int, nb*nb)
	for ti, t := range tr.tris {
		a, b, c := tr.pts[t.v[0]], tr.pts[t.v[1]], tr.pts[t.v[2]]
		x0, x1 := tr.bucket(math.Min(a.x, math.Min(b.x, c.x))), tr.bucket(math.Max(a.x, math.Max(b.x, c.x)))
		y0, y1 := tr.bucket(math.Min(a.y, math.Min(b.y, c.y))), tr.bucket(math.Max(a.y, math.Max(b.y, c.y)))
		for by := y0; by <= y1; by++ {
			for bx := x0; bx <= x1; bx++ {
				tr.buckets[by*nb+bx] = append(tr.buckets[by*nb+bx], ti)
			}
		}
	}
}

func (tr *triangulation) bucket(v float64) int {
	b := int(v * float64(tr.nb))
	return max(0, min(b, tr.nb-1))
}

// baryTol admits query points that sit on an edge up to rounding error.
const baryTol = 1e-10

// locate returns the triangle containing p and its barycentric coordinates,
// or -1 when p is outside the convex hull.
func (tr *triangulation) locate(p vec2) (int, [3]float64) {
	if len(tr.tris) == 0 {
		return -1, [3]float64{}
	}
	for _, ti := range tr.buckets[tr.bucket(p.y)*tr.nb+tr.bucket(p.x)] {
		t := tr.tris[ti]
		a, b, c := tr.pts[t.v[0]], tr.pts[t.v[1]], tr.pts[t.v[2]]
		det := cross(a, b, c)
		l1 := cross(p, b, c) / det
		l2 := cross(a, p, c) / det
		l3 := 1 - l1 - l2
		if l1 >= -baryTol && l2 >= -baryTol && l3 >= -baryTol {
			return ti, [3]float64{l1, l2, l3}
		}
	}
	return -1, [3]float64{}
}

// neighbors returns, for each point, the points it shares a triangle edge with.
func (tr *triangulation) neighbors() [][]int {
	sets := make([]map[int]struct{}, len(tr.pts))
	for _, t := range tr.tris {
		for k := 0; k < 3; k++ {
			a, b := t.v[k], t.v[(k+1)%3]
			if sets[a] == nil {
				sets[a] = map[int]struct{}{}
			}
			if sets[b] == nil {
				sets[b] = map[int]struct{}{}
			}
			sets[a][b] = struct{}{}
			sets[b][a] = struct{}{}
		}
	}
	out := make([][]int, len(tr.pts))
	for i, s := range sets {
		for j := range s {
			out[i] = append(out[i], j)
		}
		slices.Sort(out[i])
	}
	return out
}

// collinear reports whether all points lie on one line within tol.
func collinear(pts []vec2, tol float64) bool {
	if len(pts) < 3 {
		return true
	}
	// Reference line: pts[0] to the point farthest from it.
	a := pts[0]
	far, best := 0, -1.0
	for i, p := range pts {
		d := math.Hypot(p.x-a.x, p.y-a.y)
		if d > best {
			far, best = i, d
		}
	}
	b := pts[far]
	length := math.Hypot(b.x-a.x, b.y-a.y)
	if length == 0 {
		return true
	}
	for _, p := range pts {
		if math.Abs(cross(a, b, p))/length > tol {
			return false
		}
	}
	return true
}
