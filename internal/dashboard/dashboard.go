// Package dashboard assembles the interactive light-curve view of one
// object: a chart of its forced photometry, the cutout image of the
// selected measurement and that measurement's record.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/banshee-data/lcviewer/internal/butler"
	"github.com/banshee-data/lcviewer/internal/catalog"
	"github.com/banshee-data/lcviewer/internal/monitoring"
	"github.com/banshee-data/lcviewer/internal/render"
	"github.com/banshee-data/lcviewer/internal/timeutil"
	"github.com/banshee-data/lcviewer/internal/wcs"
)

var (
	// ErrEmptyLightCurve is returned for objects with no displayable rows.
	ErrEmptyLightCurve = errors.New("dashboard: empty light curve")
	// ErrIndexOutOfRange is returned when a selection names no row.
	ErrIndexOutOfRange = errors.New("dashboard: point index out of range")
	// ErrSnapshotGone is returned for a version no longer kept.
	ErrSnapshotGone = errors.New("dashboard: snapshot no longer available")
)

// DefaultImageCacheSize bounds the rendered images kept per dashboard.
const DefaultImageCacheSize = 4098

// State is the selection state of a dashboard.
type State int32

const (
	Idle State = iota
	Transitioning
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Transitioning:
		return "transitioning"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Loader resolves an object and its light curve.
type Loader interface {
	Load(ctx context.Context, objectID int64, catalogPath string, filter bool) (*catalog.Object, error)
}

// Config selects the object and the shape of its cutouts.
type Config struct {
	ObjectID    int64
	CatalogPath string
	// Filter drops flagged light-curve rows.
	Filter bool
	// ImageSize is the side of the output frame in pixels.
	ImageSize int
	// PixelScale of the output frame in arcsec/pixel.
	PixelScale     float64
	Instrument     string
	ApertureSize   int
	ImageCacheSize int
}

func (c Config) withDefaults() Config {
	if c.ImageSize <= 0 {
		c.ImageSize = wcs.DefaultSize
	}
	if c.PixelScale <= 0 {
		c.PixelScale = wcs.DefaultPixelScale
	}
	if c.Instrument == "" {
		c.Instrument = butler.DefaultInstrument
	}
	if c.ImageCacheSize <= 0 {
		c.ImageCacheSize = DefaultImageCacheSize
	}
	return c
}

// Deps are the collaborators a dashboard draws from.
type Deps struct {
	Loader   Loader
	Store    butler.Store
	Renderer *render.Renderer
	// Clock defaults to the system clock.
	Clock timeutil.Clock
}

// Dashboard is the live view of one object. Select may be called from
// many goroutines; selections are applied one at a time.
type Dashboard struct {
	// Session identifies this dashboard instance in logs and pages.
	Session string
	Created time.Time

	cfg      Config
	obj      *catalog.Object
	frame    wcs.Frame
	chart    []byte
	store    butler.Store
	renderer *render.Renderer
	clock    timeutil.Clock

	view    View
	touched atomic.Int64
	images  *lru.Cache[int, image.Image]
	state   atomic.Int32
	mu      sync.Mutex
}

// New loads the object, builds its chart and shows its first light-curve
// row.
func New(ctx context.Context, cfg Config, deps Deps) (*Dashboard, error) {
	cfg = cfg.withDefaults()
	if deps.Loader == nil || deps.Store == nil || deps.Renderer == nil {
		return nil, fmt.Errorf("dashboard: loader, store and renderer are required")
	}

	obj, err := deps.Loader.Load(ctx, cfg.ObjectID, cfg.CatalogPath, cfg.Filter)
	if err != nil {
		return nil, err
	}
	if len(obj.LC) == 0 {
		return nil, fmt.Errorf("object %d: %w", cfg.ObjectID, ErrEmptyLightCurve)
	}

	pos := obj.Position()
	frame := wcs.NewTangentFrame(pos.RA, pos.Dec, cfg.ImageSize, cfg.PixelScale)

	chart, err := RenderChart(obj)
	if err != nil {
		return nil, err
	}

	images, err := lru.New[int, image.Image](cfg.ImageCacheSize)
	if err != nil {
		return nil, fmt.Errorf("image cache: %w", err)
	}
	clock := deps.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	d := &Dashboard{
		Session:  uuid.NewString(),
		Created:  clock.Now(),
		cfg:      cfg,
		obj:      obj,
		frame:    frame,
		chart:    chart,
		store:    deps.Store,
		renderer: deps.Renderer,
		clock:    clock,
		images:   images,
	}

	img, err := d.imageAt(ctx, 0)
	if err != nil {
		return nil, err
	}
	d.view.Publish(0, img, FormatRecord(0, obj.LC[0]), d.Created)
	d.Touch()
	monitoring.Logf("dashboard %s: object %d with %d rows", d.Session, obj.ObjectID, len(obj.LC))
	return d, nil
}

// Select shows the light-curve row named by the first of points and
// returns the published snapshot. An empty list changes nothing and
// returns nil. On error the displayed panes keep the previous selection.
func (d *Dashboard) Select(ctx context.Context, points []int) (*Snapshot, error) {
	if len(points) == 0 {
		return nil, nil
	}
	idx := points[0]
	if idx < 0 || idx >= len(d.obj.LC) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, idx, len(d.obj.LC))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Store(int32(Transitioning))
	defer d.state.Store(int32(Idle))

	d.Touch()
	start := d.clock.Now()
	text := FormatRecord(idx, d.obj.LC[idx])
	img, err := d.imageAt(ctx, idx)
	if err != nil {
		monitoring.Logf("dashboard %s: select %d: %v", d.Session, idx, err)
		return nil, err
	}
	snap := d.view.Publish(idx, img, text, d.clock.Now())
	monitoring.Logf("dashboard %s: selected %d (version %d) in %s", d.Session, idx, snap.Version, d.clock.Since(start).Round(time.Millisecond))
	return snap, nil
}

// imageAt renders the cutout of light-curve row idx onto the output frame.
func (d *Dashboard) imageAt(ctx context.Context, idx int) (image.Image, error) {
	if img, ok := d.images.Get(idx); ok {
		return img, nil
	}
	row := d.obj.LC[idx]
	img, err := d.renderer.Cutout(ctx, render.CutoutRequest{
		Store: d.store,
		ID: butler.DataID{
			Instrument: d.cfg.Instrument,
			Visit:      row.Visit,
			Detector:   row.Detector,
		},
		Target:       d.obj.Position(),
		Size:         d.cfg.ImageSize,
		Output:       &d.frame,
		ApertureSize: d.cfg.ApertureSize,
	})
	if err != nil {
		return nil, fmt.Errorf("row %d (visit %d, detector %d): %w", idx, row.Visit, row.Detector, err)
	}
	d.images.Add(idx, img)
	return img, nil
}

// Current returns the displayed panes.
func (d *Dashboard) Current() *Snapshot { return d.view.Current() }

// Snapshot returns the panes published as version.
func (d *Dashboard) Snapshot(version uint64) (*Snapshot, error) {
	if s, ok := d.view.At(version); ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: version %d", ErrSnapshotGone, version)
}

// Touch marks the dashboard as in use.
func (d *Dashboard) Touch() { d.touched.Store(d.clock.Now().UnixNano()) }

// LastActive is when the dashboard was last touched.
func (d *Dashboard) LastActive() time.Time { return time.Unix(0, d.touched.Load()) }

// State reports whether a selection is being applied.
func (d *Dashboard) State() State { return State(d.state.Load()) }

// Object returns the displayed object. It must not be modified.
func (d *Dashboard) Object() *catalog.Object { return d.obj }

// Frame is the shared output frame every cutout is reprojected onto.
func (d *Dashboard) Frame() wcs.Frame { return d.frame }

// ChartHTML is the rendered chart page.
func (d *Dashboard) ChartHTML() []byte { return d.chart }

// Colors lists the plot color of each light-curve row, in row order.
func (d *Dashboard) Colors() []string {
	out := make([]string, len(d.obj.LC))
	for i, s := range d.obj.LC {
		out[i] = ColorFor(s.Band)
	}
	return out
}
