package render

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/plot/palette"
)

var legendQuantiles = []float64{0, 0.25, 0.5, 0.75, 1}

// LegendStop is one labelled colour on the gradient legend.
type LegendStop struct {
	Fraction float64 `json:"fraction"`
	Minutes  float64 `json:"minutes"`
	Color    string  `json:"color"`
}

// Label formats the stop value for display.
func (s LegendStop) Label() string {
	return fmt.Sprintf("%.0f min", s.Minutes)
}

// legendStops places stops at fixed quantiles of the colour range. lo and hi are in
// the transformed space; labels are mapped back to minutes when logScale is set.
func legendStops(lo, hi float64, logScale bool, cm palette.ColorMap) []LegendStop {
	stops := make([]LegendStop, len(legendQuantiles))
	for i, q := range legendQuantiles {
		v := lo + q*(hi-lo)
		if logScale {
			v = math.Expm1(v)
		}
		stops[i] = LegendStop{
			Fraction: q,
			Minutes:  v,
			Color:    hexColor(colorAt(cm, q)),
		}
	}
	return stops
}

// gradientCSS renders the stops as a bottom-to-top CSS linear gradient.
func gradientCSS(stops []LegendStop) string {
	parts := make([]string, len(stops))
	for i, s := range stops {
		parts[i] = fmt.Sprintf("%s %.0f%%", s.Color, s.Fraction*100)
	}
	return "linear-gradient(to top, " + strings.Join(parts, ", ") + ")"
}
