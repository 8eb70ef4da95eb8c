package render

import (
	"fmt"
	"image/color"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
)

// Colour scale names accepted by LookupColorMap.
const (
	ColorViridis = "viridis"
	ColorMagma   = "magma"
	ColorHeat    = "heat"
	ColorBlueRed = "blue-red"
)

var (
	viridisStops = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}
	magmaStops   = []string{"#000004", "#180f3d", "#440f76", "#721f81", "#9e2f7f", "#cd4071", "#f1605d", "#fd9668", "#feca8d", "#fcfdbf"}
)

// ColorMapNames lists the supported colour scales.
func ColorMapNames() []string {
	names := []string{ColorViridis, ColorMagma, ColorHeat, ColorBlueRed}
	sort.Strings(names)
	return names
}

// LookupColorMap returns a fresh colour scale over [0, 1].
func LookupColorMap(name string) (palette.ColorMap, error) {
	var cm palette.ColorMap
	switch strings.ToLower(name) {
	case ColorViridis:
		cm = mustStops(viridisStops)
	case ColorMagma:
		cm = mustStops(magmaStops)
	case ColorHeat:
		cm = &stopMap{colors: palette.Heat(16, 1).Colors(), alpha: 1}
	case ColorBlueRed:
		cm = moreland.SmoothBlueRed()
	default:
		return nil, fmt.Errorf("unknown colour map %q (want one of %s)", name, strings.Join(ColorMapNames(), ", "))
	}
	cm.SetMin(0)
	cm.SetMax(1)
	return cm, nil
}

// stopMap is a palette.ColorMap that interpolates linearly between evenly
// spaced colour stops.
type stopMap struct {
	colors   []color.Color
	min, max float64
	alpha    float64
}

func mustStops(hex []string) *stopMap {
	colors := make([]color.Color, len(hex))
	for i, h := range hex {
		c, err := parseHex(h)
		if err != nil {
			panic(err)
		}
		colors[i] = c
	}
	return &stopMap{colors: colors, alpha: 1}
}

func (m *stopMap) At(v float64) (color.Color, error) {
	if math.IsNaN(v) {
		return nil, palette.ErrNaN
	}
	if m.max == m.min {
		return nil, fmt.Errorf("colour map range [%v, %v] is empty", m.min, m.max)
	}
	if v < m.min {
		return nil, palette.ErrUnderflow
	}
	if v > m.max {
		return nil, palette.ErrOverflow
	}
	t := (v - m.min) / (m.max - m.min) * float64(len(m.colors)-1)
	i := int(math.Floor(t))
	if i >= len(m.colors)-1 {
		i = len(m.colors) - 2
	}
	f := t - float64(i)
	a := color.NRGBAModel.Convert(m.colors[i]).(color.NRGBA)
	b := color.NRGBAModel.Convert(m.colors[i+1]).(color.NRGBA)
	lerp := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + f*(float64(y)-float64(x))))
	}
	return color.NRGBA{
		R: lerp(a.R, b.R),
		G: lerp(a.G, b.G),
		B: lerp(a.B, b.B),
		A: uint8(math.Round(m.alpha * 255)),
	}, nil
}

func (m *stopMap) Max() float64 { return m.max }
func (m *stopMap) Min() float64 { return m.min }
func (m *stopMap) SetMax(v float64) { m.max = v }
func (m *stopMap) SetMin(v float64) { m.min = v }
func (m *stopMap) Alpha() float64 { return m.alpha }
func (m *stopMap) SetAlpha(a float64) { m.alpha = a }

func (m *stopMap) Palette(n int) palette.Palette {
	return sampled(m, n)
}

type colorList []color.Color

func (l colorList) Colors() []color.Color { return l }

// sampled draws n evenly spaced colours from cm.
func sampled(cm palette.ColorMap, n int) palette.Palette {
	out := make(colorList, n)
	for i := range out {
		v := cm.Min()
		if n > 1 {
			v += float64(i) / float64(n-1) * (cm.Max() - cm.Min())
		}
		c, err := cm.At(v)
		if err != nil {
			c = color.Transparent
		}
		out[i] = c
	}
	return out
}

// colorAt maps t in [0, 1] through cm, clamping out-of-range values.
func colorAt(cm palette.ColorMap, t float64) color.NRGBA {
	t = math.Max(0, math.Min(1, t))
	c, err := cm.At(cm.Min() + t*(cm.Max()-cm.Min()))
	if err != nil {
		return color.NRGBA{}
	}
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}

func parseHex(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("bad colour %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("bad colour %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

func hexColor(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
