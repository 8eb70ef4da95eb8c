// Package render turns an interpolated travel-time grid into a colour raster,
// contour lines, a legend, an interactive Leaflet map and a static preview plot.
package render

import (
	"encoding/json"
	"fmt"
	"image"
	"log/slog"

	"github.com/couchcryptid/commute-heatmap/internal/domain"
	"github.com/couchcryptid/commute-heatmap/internal/observability"
	"github.com/paulmach/orb/geojson"
)

// Options controls how a grid is rendered.
type Options struct {
	Levels   []float64
	ColorMap string
	LogScale bool
	Legend   bool
	Preview  bool
	Opacity  float64
	Zoom     int
}

// DefaultOptions returns the rendering defaults used by the heatmap command.
func DefaultOptions() Options {
	return Options{
		Levels:   []float64{15, 30, 45, 60},
		ColorMap: ColorViridis,
		Legend:   true,
		Preview:  true,
		Opacity:  0.6,
		Zoom:     12,
	}
}

// Artifact is everything rendered from one grid. It holds no state beyond
// what can be regenerated from the grid.
type Artifact struct {
	City      string
	Raster    *image.NRGBA
	RasterPNG []byte
	Contours  *geojson.FeatureCollection
	Levels    []float64
	Legend    []LegendStop
	HTML      []byte
	Preview   []byte
}

// Files returns the artifact's output files keyed by file name.
func (a *Artifact) Files() (map[string][]byte, error) {
	files := map[string][]byte{
		a.City + "_heatmap.html":    a.HTML,
		a.City + "_heatmap_raw.png": a.RasterPNG,
	}
	if a.Contours != nil {
		data, err := json.Marshal(a.Contours)
		if err != nil {
			return nil, fmt.Errorf("marshal contours: %w", err)
		}
		files[a.City+"_contours.geojson"] = data
	}
	if len(a.Preview) > 0 {
		files[a.City+"_preview.png"] = a.Preview
	}
	return files, nil
}

// Omitted returns the names of optional files this artifact does not produce.
// A previous render of the same city may have left them behind.
func (a *Artifact) Omitted() []string {
	var names []string
	if a.Contours == nil {
		names = append(names, a.City+"_contours.geojson")
	}
	if len(a.Preview) == 0 {
		names = append(names, a.City+"_preview.png")
	}
	return names
}

// Renderer produces artifacts from grids.
type Renderer struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewRenderer creates a Renderer.
func NewRenderer(logger *slog.Logger, metrics *observability.Metrics) *Renderer {
	return &Renderer{logger: logger, metrics: metrics}
}

// Render builds an Artifact from grid. A nil or invalid grid, or one whose
// bounds have no area, yields ErrRender.
func (r *Renderer) Render(grid *domain.InterpolatedGrid, opts Options) (*Artifact, error) {
	if grid == nil {
		return nil, fmt.Errorf("render: %w: no grid", domain.ErrRender)
	}
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("render %s: %w: %w", grid.CityName, domain.ErrRender, err)
	}
	if b := grid.Bounds(); b.Max.Lon() <= b.Min.Lon() || b.Max.Lat() <= b.Min.Lat() {
		return nil, fmt.Errorf("render %s: %w: degenerate bounds", grid.CityName, domain.ErrRender)
	}
	if opts.Opacity <= 0 || opts.Opacity > 1 {
		opts.Opacity = DefaultOptions().Opacity
	}
	if opts.Zoom <= 0 {
		opts.Zoom = DefaultOptions().Zoom
	}

	cm, err := LookupColorMap(opts.ColorMap)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w: %w", grid.CityName, domain.ErrRender, err)
	}

	art := &Artifact{City: grid.CityName}

	z, lo, hi := scaled(grid, opts.LogScale)
	art.Raster = rasterize(z, lo, hi, cm)
	art.RasterPNG, err = encodePNG(art.Raster)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w: %w", grid.CityName, domain.ErrRender, err)
	}
	r.rendered("raster")

	if len(opts.Levels) > 0 {
		zmin, zmax := grid.Range()
		kept, dropped := splitLevels(opts.Levels, zmin, zmax)
		if len(dropped) > 0 {
			r.logger.Info("contour levels outside data range dropped",
				"city", grid.CityName,
				"dropped", dropped,
				"min", zmin,
				"max", zmax,
			)
			r.metrics.ContourLevelsDropped.Add(float64(len(dropped)))
		}
		if len(kept) > 0 {
			art.Levels = kept
			art.Contours = contourCollection(grid, kept)
			r.rendered("contours")
		}
	}

	if opts.Legend {
		art.Legend = legendStops(lo, hi, opts.LogScale, cm)
		r.rendered("legend")
	}

	art.HTML, err = mapDocument(grid, art.RasterPNG, art.Contours, art.Legend, opts)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w: %w", grid.CityName, domain.ErrRender, err)
	}
	r.rendered("map")

	if opts.Preview {
		art.Preview, err = previewImage(grid, art.Levels, opts.ColorMap)
		if err != nil {
			// The map is still usable without the preview.
			r.logger.Warn("preview plot failed", "city", grid.CityName, "error", err)
		} else {
			r.rendered("preview")
		}
	}

	r.logger.Info("heatmap rendered",
		"city", grid.CityName,
		"rows", grid.Rows(),
		"cols", grid.Cols(),
		"levels", art.Levels,
		"color_map", opts.ColorMap,
		"log_scale", opts.LogScale,
	)
	return art, nil
}

func (r *Renderer) rendered(kind string) {
	r.metrics.ArtifactsRendered.WithLabelValues(kind).Inc()
}
