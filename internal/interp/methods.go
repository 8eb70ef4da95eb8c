package interp

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// surface evaluates an interpolant at a point in unit-square coordinates.
// NaN means the point is outside the region the interpolant covers.
type surface interface {
	at(p vec2) float64
}

// linearSurface is piecewise-linear over a Delaunay triangulation.
type linearSurface struct {
	tr     *triangulation
	values []float64
}

func (s *linearSurface) at(p vec2) float64 {
	ti, l := s.tr.locate(p)
	if ti < 0 {
		return math.NaN()
	}
	v := s.tr.tris[ti].v
	return l[0]*s.values[v[0]] + l[1]*s.values[v[1]] + l[2]*s.values[v[2]]
}

// cubicSurface is a C0 piecewise-cubic interpolant: each triangle carries a cubic
// Bezier patch whose edge control points follow the estimated vertex gradients.
type cubicSurface struct {
	tr      *triangulation
	values  []float64
	patches [][10]float64 // b300 b030 b003 b210 b120 b021 b012 b102 b201 b111
}

func newCubicSurface(tr *triangulation, values []float64) *cubicSurface {
	grads := gradients(tr, values)
	s := &cubicSurface{tr: tr, values: values, patches: make([][10]float64, len(tr.tris))}
	for ti, t := range tr.tris {
		i, j, k := t.v[0], t.v[1], t.v[2]
		pi, pj, pk := tr.pts[i], tr.pts[j], tr.pts[k]
		fi, fj, fk := values[i], values[j], values[k]
		edge := func(f float64, g vec2, from, to vec2) float64 {
			return f + (g.x*(to.x-from.x)+g.y*(to.y-from.y))/3
		}
		b := [10]float64{
			fi, fj, fk,
			edge(fi, grads[i], pi, pj), // b210
			edge(fj, grads[j], pj, pi), // b120
			edge(fj, grads[j], pj, pk), // b021
			edge(fk, grads[k], pk, pj), // b012
			edge(fk, grads[k], pk, pi), // b102
			edge(fi, grads[i], pi, pk), // b201
		}
		e := (b[3] + b[4] + b[5] + b[6] + b[7] + b[8]) / 6
		v := (fi + fj + fk) / 3
		b[9] = e + (e-v)/2
		s.patches[ti] = b
	}
	return s
}

func (s *cubicSurface) at(p vec2) float64 {
	ti, l := s.tr.locate(p)
	if ti < 0 {
		return math.NaN()
	}
	u, v, w := l[0], l[1], l[2]
	b := s.patches[ti]
	return b[0]*u*u*u + b[1]*v*v*v + b[2]*w*w*w +
		3*b[3]*u*u*v + 3*b[4]*u*v*v + 3*b[5]*v*v*w +
		3*b[6]*v*w*w + 3*b[7]*u*w*w + 3*b[8]*u*u*w +
		6*b[9]*u*v*w
}

// gradients estimates the gradient at every vertex by a distance-weighted
// least-squares plane through its triangulation neighbours.
func gradients(tr *triangulation, values []float64) []vec2 {
	nbrs := tr.neighbors()
	out := make([]vec2, len(tr.pts))
	for i, ns := range nbrs {
		if len(ns) < 2 {
			continue
		}
		a := mat.NewDense(len(ns), 2, nil)
		b := mat.NewVecDense(len(ns), nil)
		for r, j := range ns {
			dx, dy := tr.pts[j].x-tr.pts[i].x, tr.pts[j].y-tr.pts[i].y
			w := 1 / math.Hypot(dx, dy)
			a.Set(r, 0, dx*w)
			a.Set(r, 1, dy*w)
			b.SetVec(r, (values[j]-values[i])*w)
		}
		var g mat.VecDense
		if err := g.SolveVec(a, b); err != nil {
			continue
		}
		out[i] = vec2{g.AtVec(0), g.AtVec(1)}
	}
	return out
}

// nearestSurface takes the value of the closest sample everywhere.
type nearestSurface struct {
	pts    []vec2
	values []float64
}

func (s *nearestSurface) at(p vec2) float64 {
	best, bestD := 0, math.Inf(1)
	for i, q := range s.pts {
		dx, dy := q.x-p.x, q.y-p.y
		if d := dx*dx + dy*dy; d < bestD {
			best, bestD = i, d
		}
	}
	return s.values[best]
}

// idwSurface is inverse-distance-squared weighting in raw degrees. It is the
// fallback when the samples are collinear and admit no triangulation.
type idwSurface struct {
	lons, lats []float64
	values     []float64
}

func (s *idwSurface) atLonLat(lon, lat float64) float64 {
	var num, den float64
	for i := range s.values {
		dx, dy := s.lons[i]-lon, s.lats[i]-lat
		d2 := dx*dx + dy*dy
		if d2 == 0 {
			return s.values[i]
		}
		w := 1 / d2
		num += w * s.values[i]
		den += w
	}
	return num / den
}
