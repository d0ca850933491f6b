package butler

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/banshee-data/lcviewer/internal/pixel"
	"github.com/banshee-data/lcviewer/internal/wcs"
)

// ApertureSize is the side of the square region summed for the aperture
// flux and used for the display intensity limits.
const ApertureSize = 10

// Cutout is a clipped region of an exposure.
type Cutout struct {
	ID     DataID
	Pixels pixel.Grid
	// Box is the region in detector pixel coordinates. It always lies
	// within the detector bounding box and may be smaller than requested.
	Box image.Rectangle
	// Frame is the exposure frame shifted so that local pixel (0, 0) is the
	// first element of Pixels.
	Frame wcs.Frame
}

// CutoutBox returns the size x size box centred on the pixel nearest to
// (x, y). For odd sizes the extra pixel goes on the high side.
func CutoutBox(x, y float64, size int) image.Rectangle {
	cx := int(math.Floor(x + 0.5))
	cy := int(math.Floor(y + 0.5))
	origin := image.Pt(cx-size/2, cy-size/2)
	return image.Rectangle{Min: origin, Max: origin.Add(image.Pt(size, size))}
}

// GetCutout fetches the size x size region around pos from exposure id,
// clipped to the detector. ErrOffSensor is returned when nothing remains
// after clipping or pos cannot be projected into the exposure.
func GetCutout(ctx context.Context, store Store, id DataID, pos wcs.SkyPosition, size int) (*Cutout, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cutout size must be positive, got %d", size)
	}
	id = id.WithDefaults()

	frame, err := store.WCS(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("wcs for %s: %w", id, err)
	}
	detector, err := store.DetectorBBox(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("detector bbox for %s: %w", id, err)
	}

	x, y, ok := frame.SkyToPixel(pos)
	if !ok {
		return nil, fmt.Errorf("%s at %s: %w", id, pos, ErrOffSensor)
	}
	box := CutoutBox(x, y, size).Intersect(detector)
	if box.Empty() {
		return nil, fmt.Errorf("%s at %s: %w", id, pos, ErrOffSensor)
	}

	pixels, err := store.Image(ctx, id, box)
	if err != nil {
		return nil, fmt.Errorf("image for %s %v: %w", id, box, err)
	}
	if pixels.Dx() != box.Dx() || pixels.Dy() != box.Dy() {
		return nil, fmt.Errorf("image for %s: got %s for box %v", id, pixels, box)
	}

	return &Cutout{
		ID:     id,
		Pixels: pixels,
		Box:    box,
		Frame:  frame.Cutout(box),
	}, nil
}

// Aperture is the fixed-size cutout used for the flux statistic.
type Aperture struct {
	Cutout
	// Flux is the sum of the finite aperture pixels.
	Flux float64
}

// GetApertureFlux retrieves the size x size cutout around pos and sums it.
// A size of zero or less means ApertureSize.
func GetApertureFlux(ctx context.Context, store Store, id DataID, pos wcs.SkyPosition, size int) (*Aperture, error) {
	if size <= 0 {
		size = ApertureSize
	}
	c, err := GetCutout(ctx, store, id, pos, size)
	if err != nil {
		return nil, err
	}
	return &Aperture{Cutout: *c, Flux: c.Pixels.Sum()}, nil
}
