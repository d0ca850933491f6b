package render

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/lcviewer/internal/pixel"
	"github.com/banshee-data/lcviewer/internal/wcs"
)

// ErrNoOverlap means the source image covers none of the output frame.
var ErrNoOverlap = errors.New("render: source image does not overlap the output frame")

// keysA is the free parameter of the Keys cubic convolution kernel.
const keysA = -0.5

func cubic(t float64) float64 {
	t = math.Abs(t)
	switch {
	case t <= 1:
		return ((keysA+2)*t-(keysA+3))*t*t + 1
	case t < 2:
		return ((keysA*t-5*keysA)*t+8*keysA)*t - 4*keysA
	}
	return 0
}

// Reproject resamples src, whose pixel coordinates are described by
// srcFrame, onto dstFrame using bicubic interpolation. The output has
// dstFrame's size. Output pixels that map outside src are NaN and have a
// footprint of 0; covered pixels have a footprint of 1.
func Reproject(src pixel.Grid, srcFrame, dstFrame wcs.Frame) (out, footprint pixel.Grid, err error) {
	if src.Empty() {
		return pixel.Grid{}, pixel.Grid{}, fmt.Errorf("reproject %s: %w", src, ErrNoOverlap)
	}
	if err := srcFrame.Validate(); err != nil {
		return pixel.Grid{}, pixel.Grid{}, fmt.Errorf("source frame: %w", err)
	}
	if err := dstFrame.Validate(); err != nil {
		return pixel.Grid{}, pixel.Grid{}, fmt.Errorf("output frame: %w", err)
	}
	if dstFrame.Width <= 0 || dstFrame.Height <= 0 {
		return pixel.Grid{}, pixel.Grid{}, fmt.Errorf("output frame has no pixels: %dx%d", dstFrame.Width, dstFrame.Height)
	}

	out = pixel.NewGrid(dstFrame.Width, dstFrame.Height)
	footprint = pixel.NewGrid(dstFrame.Width, dstFrame.Height)
	covered := 0
	for y := 0; y < out.Dy(); y++ {
		for x := 0; x < out.Dx(); x++ {
			sx, sy, ok := srcFrame.SkyToPixel(dstFrame.PixelToSky(float64(x), float64(y)))
			if !ok || !inside(src, sx, sy) {
				out.Set(x, y, math.NaN())
				continue
			}
			out.Set(x, y, sampleBicubic(src, sx, sy))
			footprint.Set(x, y, 1)
			covered++
		}
	}
	if covered == 0 {
		return pixel.Grid{}, pixel.Grid{}, ErrNoOverlap
	}
	return out, footprint, nil
}

// inside reports whether (x, y) falls on a source pixel, each pixel
// extending half a pixel around its centre.
func inside(g pixel.Grid, x, y float64) bool {
	return x >= -0.5 && y >= -0.5 && x <= float64(g.Dx())-0.5 && y <= float64(g.Dy())-0.5
}

// sampleBicubic interpolates g at (x, y) from the surrounding 4x4 pixels,
// clamping reads at the array edge.
func sampleBicubic(g pixel.Grid, x, y float64) float64 {
	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)

	var wx, wy, row [4]float64
	for k := 0; k < 4; k++ {
		wx[k] = cubic(fx - float64(k-1))
		wy[k] = cubic(fy - float64(k-1))
	}

	var cols [4]float64
	for j := 0; j < 4; j++ {
		yy := clamp(iy+j-1, g.Dy())
		for i := 0; i < 4; i++ {
			row[i] = g.Get(clamp(ix+i-1, g.Dx()), yy)
		}
		cols[j] = floats.Dot(wx[:], row[:])
	}
	return floats.Dot(wy[:], cols[:])
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
