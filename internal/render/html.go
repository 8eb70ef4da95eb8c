package render

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"slices"

	"github.com/couchcryptid/commute-heatmap/internal/domain"
	"github.com/paulmach/orb/geojson"
)

//go:embed map.html.tmpl
var mapSource string

var mapTemplate = template.Must(template.New("map").Parse(mapSource))

type mapView struct {
	Title    string
	Center   [2]float64
	Bounds   [2][2]float64
	Zoom     int
	Opacity  float64
	Image    string
	Contours *geojson.FeatureCollection
	Legend   []LegendStop
	Gradient template.CSS
}

// mapDocument builds the self-contained Leaflet page. Legend labels are
// listed top to bottom, highest first.
func mapDocument(grid *domain.InterpolatedGrid, rasterPNG []byte, contours *geojson.FeatureCollection, legend []LegendStop, opts Options) ([]byte, error) {
	b := grid.Bounds()
	view := mapView{
		Title:   fmt.Sprintf("%s commute time", grid.CityName),
		Center:  [2]float64{grid.Center.Lat, grid.Center.Lon},
		Bounds:  [2][2]float64{{b.Min.Lat(), b.Min.Lon()}, {b.Max.Lat(), b.Max.Lon()}},
		Zoom:    opts.Zoom,
		Opacity: opts.Opacity,
		Image:   "data:image/png;base64," + base64.StdEncoding.EncodeToString(rasterPNG),
	}
	if contours != nil && len(contours.Features) > 0 {
		view.Contours = contours
	}
	if len(legend) > 0 {
		view.Gradient = template.CSS(gradientCSS(legend))
		view.Legend = slices.Clone(legend)
		slices.Reverse(view.Legend)
	}

	var buf bytes.Buffer
	if err := mapTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("execute map template: %w", err)
	}
	return buf.Bytes(), nil
}
