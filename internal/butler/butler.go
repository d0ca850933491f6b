// Package butler retrieves calibrated exposure pixels and their world
// coordinate frames from an image store, and cuts clipped regions around a
// sky position out of them.
package butler

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/banshee-data/lcviewer/internal/pixel"
	"github.com/banshee-data/lcviewer/internal/wcs"
)

// DefaultInstrument is the camera assumed when a DataID names none.
const DefaultInstrument = "LSSTComCam"

var (
	// ErrNotFound is returned by a Store for an exposure it does not hold.
	ErrNotFound = errors.New("butler: exposure not found")
	// ErrOffSensor means the requested position does not fall on (or near)
	// the exposure's detector, so no pixels can be cut out.
	ErrOffSensor = errors.New("butler: position does not overlap the detector")
)

// DataID identifies one calibrated exposure: a single detector of a visit.
type DataID struct {
	Instrument string `json:"instrument"`
	Visit      int64  `json:"visit"`
	Detector   int    `json:"detector"`
}

func (id DataID) String() string {
	return fmt.Sprintf("%s/visit=%d/detector=%d", id.Instrument, id.Visit, id.Detector)
}

// WithDefaults fills in the default instrument.
func (id DataID) WithDefaults() DataID {
	if id.Instrument == "" {
		id.Instrument = DefaultInstrument
	}
	return id
}

// Store is the image store collaborator. Frames and bounding boxes are in
// the detector's pixel coordinates; Image returns the pixels inside box,
// which must lie within the detector bounding box.
type Store interface {
	WCS(ctx context.Context, id DataID) (wcs.Frame, error)
	DetectorBBox(ctx context.Context, id DataID) (image.Rectangle, error)
	Image(ctx context.Context, id DataID, box image.Rectangle) (pixel.Grid, error)
}

// Exposure is a full calibrated exposure as held by the in-process stores.
type Exposure struct {
	ID     DataID
	Frame  wcs.Frame
	BBox   image.Rectangle
	Pixels pixel.Grid
}

// Validate checks that the pixel grid matches the bounding box.
func (e Exposure) Validate() error {
	if e.BBox.Empty() {
		return fmt.Errorf("exposure %s: empty bounding box", e.ID)
	}
	if e.Pixels.Dx() != e.BBox.Dx() || e.Pixels.Dy() != e.BBox.Dy() {
		return fmt.Errorf("exposure %s: %s does not match bounding box %v", e.ID, e.Pixels, e.BBox)
	}
	if err := e.Frame.Validate(); err != nil {
		return fmt.Errorf("exposure %s: %w", e.ID, err)
	}
	return nil
}

// sub cuts box (detector coordinates) out of the full exposure pixels.
func (e Exposure) sub(box image.Rectangle) (pixel.Grid, error) {
	if !box.In(e.BBox) {
		return pixel.Grid{}, fmt.Errorf("box %v outside detector %v", box, e.BBox)
	}
	return e.Pixels.Sub(box.Sub(e.BBox.Min))
}
