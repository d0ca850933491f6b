package testutil

import (
	"context"
	"net/http"
	"testing"

	"github.com/banshee-data/lcviewer/internal/butler"
)

func TestAssertStatusCode(t *testing.T) {
	t.Parallel()
	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertStatusCode(t, http.StatusNotFound, http.StatusNotFound)
}

func TestAssertStatusCode_FailurePath(t *testing.T) {
	t.Parallel()

	ok := t.Run("status mismatch", func(t *testing.T) {
		AssertStatusCode(t, http.StatusOK, http.StatusBadRequest)
	})
	if ok {
		t.Fatal("expected subtest to fail on mismatched status code")
	}
}

func TestNewTestRequest(t *testing.T) {
	t.Parallel()

	req := NewTestRequest(http.MethodPost, "/api/objects/1/select")
	if req.Method != http.MethodPost {
		t.Errorf("method = %s, want POST", req.Method)
	}
	if req.URL.Path != "/api/objects/1/select" {
		t.Errorf("path = %s", req.URL.Path)
	}
}

func TestNewCatalog(t *testing.T) {
	c := NewCatalog(t, 3, 1)

	obj, err := c.Loader.Load(context.Background(), c.ObjectID(), c.Path, false)
	AssertNoError(t, err)
	if len(obj.LC) != 4 {
		t.Errorf("len(LC) = %d, want 4", len(obj.LC))
	}

	obj, err = c.Loader.Load(context.Background(), c.ObjectID(), c.Path, true)
	AssertNoError(t, err)
	if len(obj.LC) != 3 {
		t.Errorf("filtered len(LC) = %d, want 3", len(obj.LC))
	}

	s := obj.LC[0]
	if _, err := c.Store.WCS(context.Background(), butler.DataID{Instrument: butler.DefaultInstrument, Visit: s.Visit, Detector: s.Detector}); err != nil {
		t.Errorf("exposure for first row missing: %v", err)
	}
}

func TestSmallRenderer(t *testing.T) {
	r := SmallRenderer(t)
	if w, h := r.Options().PixelSize(); w != 120 || h != 120 {
		t.Errorf("PixelSize() = %dx%d, want 120x120", w, h)
	}
}
