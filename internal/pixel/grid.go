// Package pixel holds the dense floating point arrays that carry image
// data between the image store, the reprojection step and the renderer.
package pixel

import (
	"fmt"
	"image"
	"math"
)

// A Grid is a row-major grid of float64 pixel values. Row 0 is the lowest
// y coordinate, matching the sensor's pixel coordinates.
type Grid struct {
	stride int
	values []float64
}

// NewGrid returns a zeroed grid of w x h pixels.
func NewGrid(w, h int) Grid {
	if w < 0 || h < 0 {
		w, h = 0, 0
	}
	return Grid{stride: w, values: make([]float64, w*h)}
}

// FromValues wraps values (row-major) as a w x h grid.
func FromValues(w, h int, values []float64) (Grid, error) {
	if w < 0 || h < 0 || len(values) != w*h {
		return Grid{}, fmt.Errorf("pixel grid %dx%d needs %d values, got %d", w, h, w*h, len(values))
	}
	return Grid{stride: w, values: values}, nil
}

// NewFilled returns a w x h grid with every pixel set to v.
func NewFilled(w, h int, v float64) Grid {
	g := NewGrid(w, h)
	for i := range g.values {
		g.values[i] = v
	}
	return g
}

func (g Grid) Dx() int { return g.stride }

func (g Grid) Dy() int {
	if g.stride == 0 {
		return 0
	}
	return len(g.values) / g.stride
}

func (g Grid) Bounds() image.Rectangle { return image.Rect(0, 0, g.Dx(), g.Dy()) }
func (g Grid) Get(x, y int) float64    { return g.values[g.stride*y+x] }
func (g Grid) Set(x, y int, v float64) { g.values[g.stride*y+x] = v }
func (g Grid) Len() int                { return len(g.values) }
func (g Grid) Empty() bool             { return len(g.values) == 0 }
func (g Grid) Values() []float64       { return g.values }
func (g Grid) In(x, y int) bool        { return x >= 0 && y >= 0 && x < g.Dx() && y < g.Dy() }
func (g Grid) String() string          { return fmt.Sprintf("grid[%dx%d]", g.Dx(), g.Dy()) }

// Copy returns a deep copy of the grid.
func (g Grid) Copy() Grid {
	out := Grid{stride: g.stride, values: make([]float64, len(g.values))}
	copy(out.values, g.values)
	return out
}

// Sub returns a copy of the pixels inside r, which must lie within the grid.
func (g Grid) Sub(r image.Rectangle) (Grid, error) {
	if !r.In(g.Bounds()) {
		return Grid{}, fmt.Errorf("sub-rectangle %v outside grid bounds %v", r, g.Bounds())
	}
	out := NewGrid(r.Dx(), r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := g.values[g.stride*y+r.Min.X : g.stride*y+r.Max.X]
		copy(out.values[out.stride*(y-r.Min.Y):], row)
	}
	return out, nil
}

// Sum adds up all finite pixel values.
func (g Grid) Sum() float64 {
	sum := 0.0
	for _, v := range g.values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sum += v
		}
	}
	return sum
}

// Finite returns the finite pixel values, in storage order.
func (g Grid) Finite() []float64 {
	out := make([]float64, 0, len(g.values))
	for _, v := range g.values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// Stats summarises the finite range of the grid, for logging.
func (g Grid) Stats() string {
	min, max := math.Inf(1), math.Inf(-1)
	n := 0
	for _, v := range g.values {
		if math.IsNaN(v) {
			continue
		}
		n++
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return fmt.Sprintf("grid[%dx%d, finite=%d, vals{%f,%f}]", g.Dx(), g.Dy(), n, min, max)
}
