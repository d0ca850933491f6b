// Package testutil provides shared test utilities and fixtures.
package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/banshee-data/lcviewer/internal/butler"
	"github.com/banshee-data/lcviewer/internal/catalog"
	"github.com/banshee-data/lcviewer/internal/db"
	"github.com/banshee-data/lcviewer/internal/fixtures"
	"github.com/banshee-data/lcviewer/internal/render"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// Catalog is a synthetic object installed into a temporary catalog file,
// with its exposures in memory.
type Catalog struct {
	Dataset fixtures.Dataset
	Path    string
	Store   *butler.MemoryStore
	Loader  *catalog.Loader
}

// NewCatalog installs a synthetic object with the given number of clean
// and flagged epochs. The catalog and loader are closed when t ends.
func NewCatalog(t testing.TB, epochs, flagged int) *Catalog {
	t.Helper()
	ctx := context.Background()

	opts := fixtures.DefaultOptions()
	opts.Epochs, opts.Flagged = epochs, flagged
	ds := fixtures.Synthetic(opts)

	path := filepath.Join(t.TempDir(), "catalog.db")
	database, err := db.NewDB(path)
	AssertNoError(t, err)
	AssertNoError(t, catalog.NewWriter(database).WriteObject(ctx, ds.Object, ds.Sources))
	AssertNoError(t, database.Close())

	store, err := ds.MemoryStore(ctx)
	AssertNoError(t, err)

	loader, err := catalog.NewLoader(0)
	AssertNoError(t, err)
	t.Cleanup(func() { loader.Close() })

	return &Catalog{Dataset: ds, Path: path, Store: store, Loader: loader}
}

// ObjectID is the id of the installed object.
func (c *Catalog) ObjectID() int64 { return c.Dataset.Object.ObjectID }

// SmallRenderer returns a renderer producing small images quickly.
func SmallRenderer(t testing.TB) *render.Renderer {
	t.Helper()
	opts := render.DefaultOptions()
	opts.WidthInches, opts.HeightInches, opts.DPI = 3, 3, 40
	r, err := render.NewRenderer(opts)
	AssertNoError(t, err)
	return r
}
