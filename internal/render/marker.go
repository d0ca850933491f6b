package render

import (
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/lcviewer/internal/wcs"
)

// circleSegments is the number of straight segments approximating the
// target circle.
const circleSegments = 72

// targetMarker outlines the sky circle of Radius degrees around Target,
// projected through Frame, so it follows the projection rather than being
// a circle in pixel space.
type targetMarker struct {
	Frame  wcs.Frame
	Target wcs.SkyPosition
	Radius float64
	draw.LineStyle
}

var _ plot.Plotter = targetMarker{}

func newTargetMarker(frame wcs.Frame, target wcs.SkyPosition, radiusArcsec float64) targetMarker {
	return targetMarker{
		Frame:  frame,
		Target: target,
		Radius: wcs.ArcsecToDeg(radiusArcsec),
		LineStyle: draw.LineStyle{
			Color: color.RGBA{R: 255, A: 255},
			Width: vg.Points(1.5),
		},
	}
}

// Plot implements plot.Plotter.
func (m targetMarker) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)

	var path vg.Path
	started := false
	for i := 0; i <= circleSegments; i++ {
		bearing := 2 * math.Pi * float64(i) / circleSegments
		x, y, ok := m.Frame.SkyToPixel(wcs.Offset(m.Target, m.Radius, bearing))
		if !ok {
			continue
		}
		pt := vg.Point{X: trX(x + pixelCentre), Y: trY(y + pixelCentre)}
		if !started {
			path.Move(pt)
			started = true
			continue
		}
		path.Line(pt)
	}
	if !started {
		return
	}
	path.Close()

	c.SetLineStyle(m.LineStyle)
	c.Stroke(path)
}
