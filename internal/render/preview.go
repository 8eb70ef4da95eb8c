package render

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/couchcryptid/commute-heatmap/internal/domain"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	previewWidth  = 8 * vg.Inch
	previewHeight = 6 * vg.Inch
	colorBarWidth = 1.2 * vg.Inch
	previewShades = 255
)

// previewImage draws the grid as a static plot with contour lines and a colour bar.
// Values are plotted in minutes regardless of the log-scale option.
func previewImage(grid *domain.InterpolatedGrid, levels []float64, colorMap string) ([]byte, error) {
	lo, hi := grid.Range()
	if hi <= lo {
		hi = lo + 1
	}

	shades, err := LookupColorMap(colorMap)
	if err != nil {
		return nil, err
	}
	bar, err := LookupColorMap(colorMap)
	if err != nil {
		return nil, err
	}
	bar.SetMin(lo)
	bar.SetMax(hi)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s travel time", grid.CityName)
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"

	hm := plotter.NewHeatMap(grid, shades.Palette(previewShades))
	hm.Min, hm.Max = lo, hi
	p.Add(hm)

	if len(levels) >= 2 {
		lines := plotter.NewContour(grid, levels, colorList{color.White, color.White})
		p.Add(lines)
	}

	cb := plot.New()
	cb.HideX()
	cb.Y.Padding = 0
	cb.Y.Label.Text = "Minutes"
	cb.Add(&plotter.ColorBar{ColorMap: bar, Vertical: true})

	img := vgimg.New(previewWidth, previewHeight)
	dc := draw.New(img)
	p.Draw(draw.Crop(dc, 0, -colorBarWidth, 0, 0))
	cb.Draw(draw.Crop(dc, previewWidth-colorBarWidth, 0, 0, 0))

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
