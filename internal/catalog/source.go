// Package catalog loads objects and their forced photometry light curves
// from a SQLite catalog.
package catalog

import (
	"encoding/json"
	"errors"
	"math"

	"github.com/banshee-data/lcviewer/internal/wcs"
)

// ErrObjectNotFound is returned when the catalog holds no object with the
// requested identifier.
var ErrObjectNotFound = errors.New("catalog: object not found")

// ErrNotCatalog is returned for databases without the catalog tables.
var ErrNotCatalog = errors.New("catalog: not a catalog database")

// Source is one forced photometry measurement: a row of a light curve.
// Missing photometry is NaN.
type Source struct {
	ForcedSourceID int64   `json:"forcedSourceId"`
	ObjectID       int64   `json:"objectId"`
	Visit          int64   `json:"visit"`
	Detector       int     `json:"detector"`
	Band           string  `json:"band"`
	MidpointMjdTai float64 `json:"midpointMjdTai"`
	PsfFlux        float64 `json:"psfFlux"`
	PsfFluxErr     float64 `json:"psfFluxErr"`
	PsfMag         float64 `json:"psfMag"`
	PsfMagErr      float64 `json:"psfMagErr"`

	PsfFluxFlag         bool `json:"psfFlux_flag"`
	PixelFlagsSuspect   bool `json:"pixelFlags_suspect"`
	PixelFlagsSaturated bool `json:"pixelFlags_saturated"`
	PixelFlagsCR        bool `json:"pixelFlags_cr"`
	PixelFlagsBad       bool `json:"pixelFlags_bad"`
}

// Flagged reports whether any quality flag is set.
func (s Source) Flagged() bool {
	return s.PsfFluxFlag || s.PixelFlagsSuspect || s.PixelFlagsSaturated || s.PixelFlagsCR || s.PixelFlagsBad
}

// MarshalJSON encodes NaN photometry as null.
func (s Source) MarshalJSON() ([]byte, error) {
	type plain Source
	return json.Marshal(struct {
		plain
		PsfFlux    *float64 `json:"psfFlux"`
		PsfFluxErr *float64 `json:"psfFluxErr"`
		PsfMag     *float64 `json:"psfMag"`
		PsfMagErr  *float64 `json:"psfMagErr"`
	}{
		plain:      plain(s),
		PsfFlux:    finite(s.PsfFlux),
		PsfFluxErr: finite(s.PsfFluxErr),
		PsfMag:     finite(s.PsfMag),
		PsfMagErr:  finite(s.PsfMagErr),
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ObjectRow is a row of the object table.
type ObjectRow struct {
	ObjectID int64   `json:"objectId"`
	CoordRA  float64 `json:"coord_ra"`
	CoordDec float64 `json:"coord_dec"`
}

// Position is the object's catalog sky position.
func (o ObjectRow) Position() wcs.SkyPosition {
	return wcs.SkyPosition{RA: o.CoordRA, Dec: o.CoordDec}
}

// Object is an object with its light curve ordered by ascending epoch.
// Objects returned by a Loader are shared and must not be modified.
type Object struct {
	ObjectRow
	LC []Source `json:"lc"`
}
