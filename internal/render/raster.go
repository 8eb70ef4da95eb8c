package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/couchcryptid/commute-heatmap/internal/domain"
	"gonum.org/v1/plot/palette"
)

// scaled returns the grid values, log1p-transformed when logScale is set, with
// their range. Negative values are clamped to zero before the transform.
func scaled(grid *domain.InterpolatedGrid, logScale bool) (z [][]float64, lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	z = make([][]float64, len(grid.GridZ))
	for r, row := range grid.GridZ {
		z[r] = make([]float64, len(row))
		for c, v := range row {
			if logScale {
				v = math.Log1p(math.Max(v, 0))
			}
			z[r][c] = v
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	return z, lo, hi
}

// rasterize colour-maps values normalised to the grid's own range.
// Image row 0 is the northernmost lattice row.
func rasterize(z [][]float64, lo, hi float64, cm palette.ColorMap) *image.NRGBA {
	rows, cols := len(z), len(z[0])
	img := image.NewNRGBA(image.Rect(0, 0, cols, rows))
	span := hi - lo
	for r := 0; r < rows; r++ {
		y := rows - 1 - r
		for c := 0; c < cols; c++ {
			t := 0.0
			if span > 0 {
				t = (z[r][c] - lo) / span
			}
			img.SetNRGBA(c, y, colorAt(cm, t))
		}
	}
	return img
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
