// Package wcs implements the tangent-plane (gnomonic) world coordinate
// frames used to map sky positions onto cutout pixel grids.
//
// Pixel coordinates are 0-based: the centre of the first pixel of an array
// is (0, 0). A Frame built for a cutout therefore maps directly onto array
// indices.
package wcs

import (
	"fmt"
	"image"
	"math"
)

const (
	// DefaultSize is the side of the square output grid, in pixels.
	DefaultSize = 100
	// DefaultPixelScale is the LSST pixel scale in arcseconds per pixel.
	DefaultPixelScale = 0.2
)

const deg2rad = math.Pi / 180.0

// SkyPosition is an ICRS position in degrees.
type SkyPosition struct {
	RA  float64 `json:"ra"`
	Dec float64 `json:"dec"`
}

func (p SkyPosition) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.RA, p.Dec)
}

// Frame is a TAN projection: reference pixel CRPix maps to sky position
// CRVal, and CD converts pixel offsets into intermediate world coordinates
// (degrees). CD is row-major: [cd1_1, cd1_2, cd2_1, cd2_2].
type Frame struct {
	CRPix  [2]float64  `json:"crpix"`
	CRVal  SkyPosition `json:"crval"`
	CD     [4]float64  `json:"cd"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
}

// NewTangentFrame builds a square frame of the given size centred on
// (ra, dec). pixelScale is in arcseconds per pixel and applies to both axes.
func NewTangentFrame(ra, dec float64, size int, pixelScale float64) Frame {
	scale := pixelScale / 3600.0
	half := float64(size) / 2
	return Frame{
		CRPix:  [2]float64{half, half},
		CRVal:  SkyPosition{RA: ra, Dec: dec},
		CD:     [4]float64{scale, 0, 0, scale},
		Width:  size,
		Height: size,
	}
}

// Validate reports frames whose linear part cannot be inverted.
func (f Frame) Validate() error {
	if f.det() == 0 {
		return fmt.Errorf("frame CD matrix is singular: %v", f.CD)
	}
	if f.CRVal.Dec < -90 || f.CRVal.Dec > 90 {
		return fmt.Errorf("frame reference dec %f outside [-90, 90]", f.CRVal.Dec)
	}
	return nil
}

func (f Frame) det() float64 {
	return f.CD[0]*f.CD[3] - f.CD[1]*f.CD[2]
}

// PixelScale returns the mean pixel scale in arcseconds per pixel.
func (f Frame) PixelScale() float64 {
	return math.Sqrt(math.Abs(f.det())) * 3600.0
}

// Cutout returns the frame of a sub-array whose first pixel sits at
// box.Min in this frame's pixel coordinates.
func (f Frame) Cutout(box image.Rectangle) Frame {
	out := f.Shifted(float64(box.Min.X), float64(box.Min.Y))
	out.Width = box.Dx()
	out.Height = box.Dy()
	return out
}

// Shifted returns the same projection with the pixel origin moved to
// (dx, dy).
func (f Frame) Shifted(dx, dy float64) Frame {
	out := f
	out.CRPix[0] -= dx
	out.CRPix[1] -= dy
	return out
}

// Bounds is the pixel-space rectangle covered by the frame's image.
func (f Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// PixelToSky maps a pixel position onto the sky.
func (f Frame) PixelToSky(x, y float64) SkyPosition {
	dx := x - f.CRPix[0]
	dy := y - f.CRPix[1]
	xi := (f.CD[0]*dx + f.CD[1]*dy) * deg2rad
	eta := (f.CD[2]*dx + f.CD[3]*dy) * deg2rad

	ra0 := f.CRVal.RA * deg2rad
	dec0 := f.CRVal.Dec * deg2rad
	sinDec0, cosDec0 := math.Sincos(dec0)

	denom := cosDec0 - eta*sinDec0
	ra := ra0 + math.Atan2(xi, denom)
	dec := math.Atan2(sinDec0+eta*cosDec0, math.Hypot(xi, denom))

	return SkyPosition{RA: NormalizeRA(ra / deg2rad), Dec: dec / deg2rad}
}

// SkyToPixel maps a sky position into pixel coordinates. ok is false when
// the position is on or beyond the horizon of the tangent plane, or when
// the frame is singular.
func (f Frame) SkyToPixel(p SkyPosition) (x, y float64, ok bool) {
	det := f.det()
	if det == 0 {
		return 0, 0, false
	}

	ra0 := f.CRVal.RA * deg2rad
	sinDec0, cosDec0 := math.Sincos(f.CRVal.Dec * deg2rad)
	sinDec, cosDec := math.Sincos(p.Dec * deg2rad)
	sinDRA, cosDRA := math.Sincos(p.RA*deg2rad - ra0)

	cosc := sinDec0*sinDec + cosDec0*cosDec*cosDRA
	if cosc <= 0 {
		return 0, 0, false
	}

	xi := cosDec * sinDRA / cosc / deg2rad
	eta := (cosDec0*sinDec - sinDec0*cosDec*cosDRA) / cosc / deg2rad

	// inverse of the 2x2 CD matrix
	dx := (f.CD[3]*xi - f.CD[1]*eta) / det
	dy := (-f.CD[2]*xi + f.CD[0]*eta) / det

	return dx + f.CRPix[0], dy + f.CRPix[1], true
}

// NormalizeRA wraps an angle in degrees into [0, 360).
func NormalizeRA(ra float64) float64 {
	ra = math.Mod(ra, 360)
	if ra < 0 {
		ra += 360
	}
	if ra >= 360 {
		ra = 0
	}
	return ra
}
