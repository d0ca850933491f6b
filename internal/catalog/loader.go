package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/banshee-data/lcviewer/internal/db"
	"github.com/banshee-data/lcviewer/internal/monitoring"
)

// DefaultCacheSize bounds the number of loaded objects kept in memory.
const DefaultCacheSize = 1024

type cacheKey struct {
	objectID int64
	path     string
	filter   bool
}

// Loader reads objects from catalog databases, keeping each catalog open
// once used and memoizing successful loads.
type Loader struct {
	cache *lru.Cache[cacheKey, *Object]

	mu  sync.Mutex
	dbs map[string]*db.DB
}

// NewLoader returns a loader whose object cache holds up to size entries.
func NewLoader(size int) (*Loader, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, *Object](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create object cache: %w", err)
	}
	return &Loader{cache: cache, dbs: make(map[string]*db.DB)}, nil
}

// Register makes an already open database available under path, so
// callers sharing the application database do not open it twice.
func (l *Loader) Register(path string, database *db.DB) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dbs[path] = database
}

// Load returns objectID with its epoch-sorted light curve from the catalog
// at catalogPath. When filter is set, quality-flagged sources are removed.
func (l *Loader) Load(ctx context.Context, objectID int64, catalogPath string, filter bool) (*Object, error) {
	key := cacheKey{objectID: objectID, path: catalogPath, filter: filter}
	if obj, ok := l.cache.Get(key); ok {
		return obj, nil
	}

	database, err := l.open(ctx, catalogPath)
	if err != nil {
		return nil, err
	}

	objects, err := queryObjects(ctx, database, objectID)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("object %d in %s: %w", objectID, catalogPath, ErrObjectNotFound)
	}
	sources, err := querySources(ctx, database, objectID)
	if err != nil {
		return nil, err
	}

	nested := JoinNested(objects, sources)
	if filter {
		nested = nested.Unflagged()
	}
	obj := nested.Object(0)
	monitoring.Logf("catalog: loaded object %d from %s (%d of %d sources kept)", objectID, catalogPath, len(obj.LC), len(sources))

	l.cache.Add(key, &obj)
	return &obj, nil
}

// Cached reports how many objects are memoized.
func (l *Loader) Cached() int { return l.cache.Len() }

// Purge drops all memoized objects.
func (l *Loader) Purge() { l.cache.Purge() }

// open returns the catalog at path. Catalogs not registered are opened
// read-only and never migrated.
func (l *Loader) open(ctx context.Context, path string) (*db.DB, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if database, ok := l.dbs[path]; ok {
		return database, nil
	}
	database, err := db.OpenReadOnly(path)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	missing, err := database.MissingTables(ctx, "object", "forced_source")
	if err == nil && len(missing) > 0 {
		err = fmt.Errorf("catalog %s lacks tables %v: %w", path, missing, ErrNotCatalog)
	}
	if err != nil {
		database.Close()
		return nil, err
	}
	l.dbs[path] = database
	return database, nil
}

// Close closes every catalog the loader opened or was given.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for path, database := range l.dbs {
		if err := database.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close catalog %s: %w", path, err)
		}
		delete(l.dbs, path)
	}
	return firstErr
}

func queryObjects(ctx context.Context, database *db.DB, objectID int64) ([]ObjectRow, error) {
	rows, err := database.QueryContext(ctx,
		`SELECT object_id, coord_ra, coord_dec FROM object WHERE object_id = ?`, objectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query object %d: %w", objectID, err)
	}
	defer rows.Close()

	var out []ObjectRow
	for rows.Next() {
		var o ObjectRow
		if err := rows.Scan(&o.ObjectID, &o.CoordRA, &o.CoordDec); err != nil {
			return nil, fmt.Errorf("failed to scan object row: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func querySources(ctx context.Context, database *db.DB, objectID int64) ([]Source, error) {
	rows, err := database.QueryContext(ctx, `
		SELECT forced_source_id, object_id, visit, detector, band, midpoint_mjd_tai,
			psf_flux, psf_flux_err, psf_mag, psf_mag_err,
			psf_flux_flag, pixel_flags_suspect, pixel_flags_saturated, pixel_flags_cr, pixel_flags_bad
		FROM forced_source WHERE object_id = ?
		ORDER BY forced_source_id`, objectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query forced sources of %d: %w", objectID, err)
	}
	defer rows.Close()

	var out []Source
	for rows.Next() {
		var s Source
		var flux, fluxErr, mag, magErr sql.NullFloat64
		if err := rows.Scan(&s.ForcedSourceID, &s.ObjectID, &s.Visit, &s.Detector, &s.Band, &s.MidpointMjdTai,
			&flux, &fluxErr, &mag, &magErr,
			&s.PsfFluxFlag, &s.PixelFlagsSuspect, &s.PixelFlagsSaturated, &s.PixelFlagsCR, &s.PixelFlagsBad); err != nil {
			return nil, fmt.Errorf("failed to scan forced source row: %w", err)
		}
		s.PsfFlux = nullToNaN(flux)
		s.PsfFluxErr = nullToNaN(fluxErr)
		s.PsfMag = nullToNaN(mag)
		s.PsfMagErr = nullToNaN(magErr)
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullToNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
