// Package fixtures generates a small synthetic data set (one variable
// object, its forced photometry and the exposures it was measured on) so the
// viewer can run and be tested without survey data.
package fixtures

import (
	"context"
	"fmt"
	"image"
	"math"
	"math/rand"

	"github.com/banshee-data/lcviewer/internal/butler"
	"github.com/banshee-data/lcviewer/internal/catalog"
	"github.com/banshee-data/lcviewer/internal/db"
	"github.com/banshee-data/lcviewer/internal/pixel"
	"github.com/banshee-data/lcviewer/internal/wcs"
)

// Defaults for Synthetic.
const (
	DefaultObjectID = 2251799813685249
	DefaultEpochs   = 12
	DetectorSize    = 256
	zeroPointMag    = 31.4 // nJy
	skyLevel        = 120.0
	skyNoise        = 6.0
	starSigma       = 2.2 // pixels
	basePeriod      = 3.7 // days
)

var bandCycle = []string{"g", "r", "i", "z", "y", "u"}

// Dataset is one object with its light curve and exposures.
type Dataset struct {
	Object    catalog.ObjectRow
	Sources   []catalog.Source
	Exposures []butler.Exposure
}

// Options shape the synthetic data.
type Options struct {
	ObjectID int64
	Target   wcs.SkyPosition
	Epochs   int
	// Flagged is the number of extra measurements carrying quality flags.
	Flagged int
	Seed    int64
}

func DefaultOptions() Options {
	return Options{
		ObjectID: DefaultObjectID,
		Target:   wcs.SkyPosition{RA: 62.0303, Dec: -37.4515},
		Epochs:   DefaultEpochs,
		Flagged:  2,
		Seed:     1,
	}
}

// Synthetic builds a deterministic data set: a periodic variable star on a
// noisy sky, seen on one detector per visit with a slightly different
// pointing, roll and sensor offset each time. Sources are returned in
// visit order, not epoch order.
func Synthetic(opts Options) Dataset {
	rng := rand.New(rand.NewSource(opts.Seed))
	ds := Dataset{Object: catalog.ObjectRow{ObjectID: opts.ObjectID, CoordRA: opts.Target.RA, CoordDec: opts.Target.Dec}}

	total := opts.Epochs + opts.Flagged
	for i := 0; i < total; i++ {
		id := butler.DataID{
			Instrument: butler.DefaultInstrument,
			Visit:      2024112600100 + int64(i)*7,
			Detector:   i % 9,
		}
		// Visits are not taken in time order.
		mjd := 60640.0 + float64((i*5)%total) + 0.13*float64(i)
		band := bandCycle[i%len(bandCycle)]
		flux := 4000 * (1.5 + math.Sin(2*math.Pi*mjd/basePeriod))

		exp := exposure(rng, id, opts.Target, flux, i)
		ds.Exposures = append(ds.Exposures, exp)

		fluxErr := math.Sqrt(flux + skyLevel*2*math.Pi*starSigma*starSigma)
		s := catalog.Source{
			ForcedSourceID: opts.ObjectID*1000 + int64(i),
			ObjectID:       opts.ObjectID,
			Visit:          id.Visit,
			Detector:       id.Detector,
			Band:           band,
			MidpointMjdTai: mjd,
			PsfFlux:        flux,
			PsfFluxErr:     fluxErr,
			PsfMag:         zeroPointMag - 2.5*math.Log10(flux),
			PsfMagErr:      2.5 / math.Ln10 * fluxErr / flux,
		}
		if i >= opts.Epochs {
			switch i % 5 {
			case 0:
				s.PsfFluxFlag = true
			case 1:
				s.PixelFlagsSuspect = true
			case 2:
				s.PixelFlagsSaturated = true
			case 3:
				s.PixelFlagsCR = true
			default:
				s.PixelFlagsBad = true
			}
		}
		ds.Sources = append(ds.Sources, s)
	}
	return ds
}

// exposure renders a detector image with the target at a visit dependent
// position and a small roll angle.
func exposure(rng *rand.Rand, id butler.DataID, target wcs.SkyPosition, flux float64, i int) butler.Exposure {
	bbox := image.Rect(0, 0, DetectorSize, DetectorSize)
	if i%2 == 1 {
		// an amplifier-style offset origin
		bbox = bbox.Add(image.Pt(512, 0))
	}

	scale := wcs.ArcsecToDeg(wcs.DefaultPixelScale)
	roll := (float64(i%5) - 2) * 0.8 * math.Pi / 180
	sinR, cosR := math.Sincos(roll)

	// Target lands away from the centre; every third visit near an edge.
	tx := float64(bbox.Min.X) + 60 + rng.Float64()*float64(DetectorSize-120)
	ty := float64(bbox.Min.Y) + 60 + rng.Float64()*float64(DetectorSize-120)
	if i%3 == 2 {
		ty = float64(bbox.Min.Y) + 12
	}

	frame := wcs.Frame{
		CRPix:  [2]float64{tx, ty},
		CRVal:  target,
		CD:     [4]float64{scale * cosR, -scale * sinR, scale * sinR, scale * cosR},
		Width:  bbox.Dx(),
		Height: bbox.Dy(),
	}
	// Nudge the pointing by up to a pixel so no two visits align exactly.
	frame.CRPix[0] += rng.Float64() - 0.5
	frame.CRPix[1] += rng.Float64() - 0.5
	sx, sy, _ := frame.SkyToPixel(target)

	g := pixel.NewGrid(bbox.Dx(), bbox.Dy())
	norm := flux / (2 * math.Pi * starSigma * starSigma)
	for y := 0; y < bbox.Dy(); y++ {
		for x := 0; x < bbox.Dx(); x++ {
			dx := float64(x+bbox.Min.X) - sx
			dy := float64(y+bbox.Min.Y) - sy
			star := norm * math.Exp(-(dx*dx+dy*dy)/(2*starSigma*starSigma))
			g.Set(x, y, skyLevel+star+rng.NormFloat64()*skyNoise)
		}
	}
	return butler.Exposure{ID: id, Frame: frame, BBox: bbox, Pixels: g}
}

// Store is the part of an image store fixtures can fill.
type Store interface {
	butler.Store
	Put(ctx context.Context, e butler.Exposure) error
}

// Install writes the catalog rows into database and the exposures into
// store.
func Install(ctx context.Context, database *db.DB, store Store, ds Dataset) error {
	if err := catalog.NewWriter(database).WriteObject(ctx, ds.Object, ds.Sources); err != nil {
		return fmt.Errorf("failed to write fixture catalog: %w", err)
	}
	for _, e := range ds.Exposures {
		if err := store.Put(ctx, e); err != nil {
			return fmt.Errorf("failed to store fixture exposure %s: %w", e.ID, err)
		}
	}
	return nil
}

// MemoryStore returns the exposures of ds in a new in-memory store.
func (ds Dataset) MemoryStore(ctx context.Context) (*butler.MemoryStore, error) {
	s := butler.NewMemoryStore()
	for _, e := range ds.Exposures {
		if err := s.Put(ctx, e); err != nil {
			return nil, err
		}
	}
	return s, nil
}
