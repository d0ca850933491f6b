package render

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot/palette"
)

// grayMap is a linear black-to-white palette.ColorMap. Values outside
// [min, max] saturate; NaN is transparent.
type grayMap struct {
	min, max float64
	alpha    float64
}

var _ palette.ColorMap = (*grayMap)(nil)

func newGrayMap(min, max float64) *grayMap {
	return &grayMap{min: min, max: max, alpha: 1}
}

func (g *grayMap) At(v float64) (color.Color, error) {
	if math.IsNaN(v) {
		return color.NRGBA{}, nil
	}
	if g.max <= g.min {
		return nil, fmt.Errorf("gray map range [%g, %g] is empty", g.min, g.max)
	}
	l := g.level(v)
	return color.NRGBA{R: l, G: l, B: l, A: uint8(255 * g.alpha)}, nil
}

// level maps v onto 0..255.
func (g *grayMap) level(v float64) uint8 {
	t := (v - g.min) / (g.max - g.min)
	t = math.Max(0, math.Min(1, t))
	return uint8(math.Round(t * 255))
}

func (g *grayMap) Max() float64           { return g.max }
func (g *grayMap) Min() float64           { return g.min }
func (g *grayMap) SetMax(v float64)       { g.max = v }
func (g *grayMap) SetMin(v float64)       { g.min = v }
func (g *grayMap) Alpha() float64         { return g.alpha }
func (g *grayMap) SetAlpha(alpha float64) { g.alpha = alpha }

// Palette returns n evenly spaced grays from black to white.
func (g *grayMap) Palette(n int) palette.Palette {
	colors := make([]color.Color, n)
	for i := range colors {
		level := uint8(0)
		if n > 1 {
			level = uint8(math.Round(255 * float64(i) / float64(n-1)))
		}
		colors[i] = color.NRGBA{R: level, G: level, B: level, A: uint8(255 * g.alpha)}
	}
	return grays(colors)
}

type grays []color.Color

func (p grays) Colors() []color.Color { return p }
