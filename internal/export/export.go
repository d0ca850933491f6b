// Package export writes a dashboard to a directory: the chart page, the
// light curve as JSON, and a PNG cutout and record text per row, indexed
// by a manifest.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/banshee-data/lcviewer/internal/butler"
	"github.com/banshee-data/lcviewer/internal/dashboard"
	"github.com/banshee-data/lcviewer/internal/fsutil"
	"github.com/banshee-data/lcviewer/internal/monitoring"
	"github.com/banshee-data/lcviewer/internal/render"
	"github.com/banshee-data/lcviewer/internal/security"
)

const (
	ManifestName   = "manifest.json"
	ChartName      = "chart.html"
	LightCurveName = "lightcurve.json"
	filePerm       = 0o644
	dirPerm        = 0o755
)

// Row describes one exported light-curve row.
type Row struct {
	Index    int     `json:"index"`
	Visit    int64   `json:"visit"`
	Detector int     `json:"detector"`
	Band     string  `json:"band"`
	MJD      float64 `json:"midpointMjdTai"`
	Image    string  `json:"image,omitempty"`
	Record   string  `json:"record"`
	// Error is set when the row's cutout could not be produced.
	Error string `json:"error,omitempty"`
}

// Manifest lists the files of an export.
type Manifest struct {
	ObjectID   int64     `json:"objectId"`
	Session    string    `json:"session"`
	Exported   time.Time `json:"exported"`
	Chart      string    `json:"chart"`
	LightCurve string    `json:"lightcurve"`
	Rows       []Row     `json:"rows"`
}

// Options select what to export.
type Options struct {
	Dir string
	// Indices are the rows to write; nil means every row.
	Indices []int
	// AllowDirs are accepted as destinations in addition to the working
	// and temp directories.
	AllowDirs []string
	Now       func() time.Time
}

// skippable reports whether err only affects the row being written.
func skippable(err error) bool {
	return errors.Is(err, butler.ErrOffSensor) || errors.Is(err, render.ErrNoOverlap) ||
		errors.Is(err, butler.ErrNotFound)
}

// Export writes d to opts.Dir on fsys. Rows whose cutout cannot be
// resolved are listed in the manifest with their error; any other failure
// stops the export. Selecting rows moves the dashboard's current view.
func Export(ctx context.Context, d *dashboard.Dashboard, fsys fsutil.FileSystem, opts Options) (*Manifest, error) {
	if opts.Dir == "" {
		return nil, errors.New("export: no output directory")
	}
	if err := security.ValidateExportPath(opts.Dir, opts.AllowDirs...); err != nil {
		return nil, err
	}
	if err := fsys.MkdirAll(opts.Dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", opts.Dir, err)
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	obj := d.Object()
	indices := opts.Indices
	if indices == nil {
		indices = make([]int, len(obj.LC))
		for i := range indices {
			indices[i] = i
		}
	}

	m := &Manifest{
		ObjectID:   obj.ObjectID,
		Session:    d.Session,
		Exported:   now().UTC(),
		Chart:      ChartName,
		LightCurve: LightCurveName,
	}
	if err := fsys.WriteFile(filepath.Join(opts.Dir, ChartName), d.ChartHTML(), filePerm); err != nil {
		return nil, fmt.Errorf("failed to write chart: %w", err)
	}
	lc, err := json.MarshalIndent(map[string]interface{}{"object": obj, "colors": d.Colors()}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode light curve: %w", err)
	}
	if err := fsys.WriteFile(filepath.Join(opts.Dir, LightCurveName), lc, filePerm); err != nil {
		return nil, fmt.Errorf("failed to write light curve: %w", err)
	}

	for _, idx := range indices {
		row, err := exportRow(ctx, d, fsys, opts.Dir, idx)
		if err != nil {
			return nil, err
		}
		m.Rows = append(m.Rows, row)
	}

	buf, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := fsys.WriteFile(filepath.Join(opts.Dir, ManifestName), buf, filePerm); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	monitoring.Logf("export: wrote %d rows of object %d to %s", len(m.Rows), m.ObjectID, opts.Dir)
	return m, nil
}

func exportRow(ctx context.Context, d *dashboard.Dashboard, fsys fsutil.FileSystem, dir string, idx int) (Row, error) {
	lc := d.Object().LC
	if idx < 0 || idx >= len(lc) {
		return Row{}, fmt.Errorf("%w: %d not in [0, %d)", dashboard.ErrIndexOutOfRange, idx, len(lc))
	}
	s := lc[idx]
	stem := security.FileStem(fmt.Sprintf("%03d", idx), strconv.FormatInt(s.Visit, 10), s.Band)
	row := Row{
		Index:    idx,
		Visit:    s.Visit,
		Detector: s.Detector,
		Band:     s.Band,
		MJD:      s.MidpointMjdTai,
		Record:   stem + ".txt",
	}

	text := dashboard.FormatRecord(idx, s)
	if err := fsys.WriteFile(filepath.Join(dir, row.Record), []byte(text+"\n"), filePerm); err != nil {
		return Row{}, fmt.Errorf("failed to write record %d: %w", idx, err)
	}

	snap, err := d.Select(ctx, []int{idx})
	if err != nil {
		if skippable(err) {
			monitoring.Logf("export: skipping cutout of row %d: %v", idx, err)
			row.Error = err.Error()
			return row, nil
		}
		return Row{}, err
	}
	png, err := snap.PNG()
	if err != nil {
		return Row{}, fmt.Errorf("failed to encode cutout %d: %w", idx, err)
	}
	row.Image = stem + ".png"
	if err := fsys.WriteFile(filepath.Join(dir, row.Image), png, filePerm); err != nil {
		return Row{}, fmt.Errorf("failed to write cutout %d: %w", idx, err)
	}
	return row, nil
}
