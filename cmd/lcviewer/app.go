package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/lcviewer/internal/butler"
	"github.com/banshee-data/lcviewer/internal/catalog"
	"github.com/banshee-data/lcviewer/internal/config"
	"github.com/banshee-data/lcviewer/internal/dashboard"
	"github.com/banshee-data/lcviewer/internal/db"
	"github.com/banshee-data/lcviewer/internal/fixtures"
	"github.com/banshee-data/lcviewer/internal/httputil"
	"github.com/banshee-data/lcviewer/internal/render"
)

const defaultDBPath = "lcviewer.db"

// commonOptions are the flags shared by serve and export.
type commonOptions struct {
	DBPath      string
	CatalogPath string
	ConfigPath  string
	ButlerURL   string
	Instrument  string
	Dev         bool
	// KeepFlagged shows quality-flagged rows.
	KeepFlagged bool
}

func (o *commonOptions) register(fs *flag.FlagSet) {
	fs.StringVar(&o.DBPath, "db", defaultDBPath, "Path to the SQLite database")
	fs.StringVar(&o.CatalogPath, "catalog", "", "Catalog database (default: the -db file)")
	fs.StringVar(&o.ConfigPath, "config", "", "Viewer configuration file (default "+config.DefaultConfigPath+" if present)")
	fs.StringVar(&o.ButlerURL, "butler-url", "", "Remote butler base URL; exposures are read from -db when empty")
	fs.StringVar(&o.Instrument, "instrument", "", "Instrument override")
	fs.BoolVar(&o.Dev, "dev", false, "Install a synthetic object into the database")
	fs.BoolVar(&o.KeepFlagged, "keep-flagged", false, "Keep quality-flagged light-curve rows")
}

// loadConfig reads the configuration file and applies flag overrides. A
// missing default file is not an error.
func (o *commonOptions) loadConfig() (*config.ViewerConfig, error) {
	cfg := config.EmptyViewerConfig()
	path := o.ConfigPath
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err == nil {
			path = config.DefaultConfigPath
		}
	}
	if path != "" {
		loaded, err := config.LoadViewerConfig(path)
		if err != nil {
			return nil, err
		}
		cfg.Merge(loaded)
	}

	override := config.EmptyViewerConfig()
	if o.Instrument != "" {
		override.SetInstrument(o.Instrument)
	}
	if o.KeepFlagged {
		override.SetFilterFlags(false)
	}
	cfg.Merge(override)
	return cfg, nil
}

// app is everything a dashboard is built from.
type app struct {
	cfg         *config.ViewerConfig
	database    *db.DB
	catalogPath string
	loader      *catalog.Loader
	store       butler.Store
	renderer    *render.Renderer
	// devObject is the synthetic object installed with -dev.
	devObject int64
}

func renderOptions(cfg *config.ViewerConfig) render.Options {
	return render.Options{
		WidthInches:        cfg.GetRenderWidthInches(),
		HeightInches:       cfg.GetRenderHeightInches(),
		DPI:                cfg.GetRenderDPI(),
		TickSpacingArcsec:  cfg.GetTickSpacingArcsec(),
		MarkerRadiusArcsec: cfg.GetMarkerRadiusArcsec(),
		Colorbar:           cfg.GetColorbar(),
	}
}

func newApp(ctx context.Context, o commonOptions) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	database, err := db.NewDB(o.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a := &app{cfg: cfg, database: database, catalogPath: o.CatalogPath}
	if a.catalogPath == "" {
		a.catalogPath = o.DBPath
	}

	if a.loader, err = catalog.NewLoader(cfg.GetObjectCacheSize()); err != nil {
		a.Close()
		return nil, err
	}
	a.loader.Register(o.DBPath, database)

	if o.ButlerURL != "" {
		client := httputil.NewTimeoutClient(cfg.GetButlerTimeout())
		a.store = butler.NewHTTPStore(o.ButlerURL, client)
		log.Printf("reading exposures from %s", o.ButlerURL)
	} else {
		a.store = butler.NewSQLiteStore(database)
	}

	if o.Dev {
		opts := fixtures.DefaultOptions()
		ds := fixtures.Synthetic(opts)
		if err := fixtures.Install(ctx, database, butler.NewSQLiteStore(database), ds); err != nil {
			a.Close()
			return nil, err
		}
		a.devObject = ds.Object.ObjectID
		a.catalogPath = o.DBPath
		log.Printf("dev mode: installed object %d with %d rows into %s", a.devObject, len(ds.Sources), o.DBPath)
	}

	if a.renderer, err = render.NewRenderer(renderOptions(cfg)); err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid render settings: %w", err)
	}
	return a, nil
}

// dashboard builds the dashboard of objectID.
func (a *app) dashboard(ctx context.Context, objectID int64) (*dashboard.Dashboard, error) {
	return dashboard.New(ctx, dashboard.Config{
		ObjectID:       objectID,
		CatalogPath:    a.catalogPath,
		Filter:         a.cfg.GetFilterFlags(),
		ImageSize:      a.cfg.GetImageSize(),
		PixelScale:     a.cfg.GetPixelScaleArcsec(),
		Instrument:     a.cfg.GetInstrument(),
		ApertureSize:   a.cfg.GetApertureSize(),
		ImageCacheSize: a.cfg.GetImageCacheSize(),
	}, dashboard.Deps{
		Loader:   a.loader,
		Store:    a.store,
		Renderer: a.renderer,
	})
}

// Close closes the catalogs and the database. Once registered with the
// loader, the database is closed with the catalogs.
func (a *app) Close() {
	if a.loader == nil {
		if err := a.database.Close(); err != nil {
			log.Printf("failed to close database: %v", err)
		}
		return
	}
	if err := a.loader.Close(); err != nil {
		log.Printf("failed to close catalogs: %v", err)
	}
}
