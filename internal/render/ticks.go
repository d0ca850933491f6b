package render

import (
	"math"

	"gonum.org/v1/plot"

	"github.com/banshee-data/lcviewer/internal/wcs"
)

// Plot coordinates put pixel i's centre at i+0.5, so the image spans
// [0, width] x [0, height].
const pixelCentre = 0.5

// skyTicker places ticks where a line of constant RA (along the bottom
// edge) or constant Dec (along the left edge) crosses the axis, every
// spacing degrees.
type skyTicker struct {
	frame   wcs.Frame
	spacing float64
	dec     bool
}

// edgeSteps is the number of segments each axis is divided into when
// searching for tick crossings.
const edgeSteps = 512

var _ plot.Ticker = skyTicker{}

// Ticks implements plot.Ticker. min and max are plot coordinates.
func (t skyTicker) Ticks(min, max float64) []plot.Tick {
	if t.spacing <= 0 || max <= min {
		return nil
	}

	// Sample the edge and unwrap RA around the frame centre so the search
	// is continuous through 0h.
	coords := make([]float64, edgeSteps+1)
	values := make([]float64, edgeSteps+1)
	for i := range coords {
		u := min + (max-min)*float64(i)/edgeSteps
		coords[i] = u
		values[i] = t.coordAt(u)
	}

	var ticks []plot.Tick
	for i := 0; i < edgeSteps; i++ {
		a, b := values[i], values[i+1]
		lo, hi := math.Min(a, b), math.Max(a, b)
		for k := math.Ceil(lo / t.spacing); k*t.spacing <= hi; k++ {
			v := k * t.spacing
			// a value landing exactly on a sample is counted once, by the
			// segment that starts there
			if v == b && i+1 < edgeSteps {
				continue
			}
			frac := 0.0
			if b != a {
				frac = (v - a) / (b - a)
			}
			label := v
			if !t.dec {
				label = wcs.NormalizeRA(v)
			}
			ticks = append(ticks, plot.Tick{
				Value: coords[i] + frac*(coords[i+1]-coords[i]),
				Label: wcs.FormatDMS(label),
			})
		}
	}
	return ticks
}

// coordAt evaluates the ticked coordinate at plot position u on the
// ticker's edge. RA is unwrapped to within 180 degrees of the reference.
func (t skyTicker) coordAt(u float64) float64 {
	var p wcs.SkyPosition
	if t.dec {
		p = t.frame.PixelToSky(-pixelCentre, u-pixelCentre)
		return p.Dec
	}
	p = t.frame.PixelToSky(u-pixelCentre, -pixelCentre)
	d := math.Mod(p.RA-t.frame.CRVal.RA+540, 360) - 180
	return t.frame.CRVal.RA + d
}
