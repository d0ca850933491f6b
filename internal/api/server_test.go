package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lcviewer/internal/butler"
	"github.com/banshee-data/lcviewer/internal/catalog"
	"github.com/banshee-data/lcviewer/internal/dashboard"
	"github.com/banshee-data/lcviewer/internal/monitoring"
	"github.com/banshee-data/lcviewer/internal/render"
	"github.com/banshee-data/lcviewer/internal/testutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type testServer struct {
	*testutil.Catalog
	registry *dashboard.Registry
	srv      *httptest.Server
}

func newTestServer(t *testing.T, epochs, flagged int) *testServer {
	t.Helper()
	c := testutil.NewCatalog(t, epochs, flagged)
	renderer := testutil.SmallRenderer(t)
	registry := dashboard.NewRegistry(func(ctx context.Context, id int64) (*dashboard.Dashboard, error) {
		return dashboard.New(ctx, dashboard.Config{ObjectID: id, CatalogPath: c.Path, Filter: true},
			dashboard.Deps{Loader: c.Loader, Store: c.Store, Renderer: renderer})
	})
	srv := httptest.NewServer(LoggingMiddleware(NewServer(registry, c.Store).ServeMux()))
	t.Cleanup(srv.Close)
	return &testServer{Catalog: c, registry: registry, srv: srv}
}

func (ts *testServer) url(format string, a ...interface{}) string {
	return ts.srv.URL + fmt.Sprintf(format, a...)
}

func (ts *testServer) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(ts.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func (ts *testServer) selectPoints(t *testing.T, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(ts.url("/api/objects/%d/select", ts.ObjectID()), "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func TestDashboardPage(t *testing.T) {
	ts := newTestServer(t, 4, 1)

	resp, body := ts.get(t, fmt.Sprintf("/objects/%d", ts.ObjectID()))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	page := string(body)
	assert.Contains(t, page, fmt.Sprintf("/objects/%d/chart", ts.ObjectID()))
	assert.Contains(t, page, "cutout.png")
	assert.Contains(t, page, dashboard.SelectMessageType)
	assert.Contains(t, page, "forcedSourceId")

	_, ok := ts.registry.Lookup(ts.ObjectID())
	assert.True(t, ok)
}

func TestIndexListsDashboards(t *testing.T) {
	ts := newTestServer(t, 3, 0)

	resp, body := ts.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(body), fmt.Sprint(ts.ObjectID()))

	_, err := ts.registry.Get(context.Background(), ts.ObjectID())
	require.NoError(t, err)
	_, body = ts.get(t, "/")
	assert.Contains(t, string(body), fmt.Sprint(ts.ObjectID()))
}

func TestChart(t *testing.T) {
	ts := newTestServer(t, 3, 0)

	resp, body := ts.get(t, fmt.Sprintf("/objects/%d/chart", ts.ObjectID()))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "goecharts_"+dashboard.ChartID)
	assert.Contains(t, string(body), dashboard.SelectMessageType)
	assert.Contains(t, string(body), "ev.origin !== window.location.origin")
	assert.Contains(t, string(body), "ev.source !== chart.contentWindow")
}

func TestSelect(t *testing.T) {
	ts := newTestServer(t, 4, 0)

	resp, body := ts.selectPoints(t, `{"point_inds":[2]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var got snapshotResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, 2, got.Index)
	assert.Equal(t, uint64(2), got.Version)
	assert.Equal(t, ts.ObjectID(), got.ObjectID)
	assert.Equal(t, "idle", got.State)
	assert.Contains(t, got.Text, "forcedSourceId")

	resp, body = ts.get(t, fmt.Sprintf("/api/objects/%d/record", ts.ObjectID()))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec snapshotResponse
	require.NoError(t, json.Unmarshal(body, &rec))
	assert.Equal(t, got.Index, rec.Index)
	assert.Equal(t, got.Version, rec.Version)
}

func TestSelect_EmptyIsNoop(t *testing.T) {
	ts := newTestServer(t, 3, 0)

	resp, body := ts.selectPoints(t, `{"point_inds":[]}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, body)

	d, ok := ts.registry.Lookup(ts.ObjectID())
	require.True(t, ok)
	assert.Equal(t, uint64(1), d.Current().Version)
}

func TestSelect_BadRequests(t *testing.T) {
	ts := newTestServer(t, 3, 0)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"out of range", `{"point_inds":[3]}`, http.StatusBadRequest},
		{"negative", `{"point_inds":[-1]}`, http.StatusBadRequest},
		{"malformed", `{"point_inds":`, http.StatusBadRequest},
		{"unknown field", `{"points":[1]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.selectPoints(t, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
			var e map[string]string
			require.NoError(t, json.Unmarshal(body, &e))
			assert.NotEmpty(t, e["error"])
		})
	}
}

func TestCutout(t *testing.T) {
	ts := newTestServer(t, 3, 0)

	resp, body := ts.get(t, fmt.Sprintf("/api/objects/%d/cutout.png", ts.ObjectID()))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "1", resp.Header.Get("X-Snapshot-Version"))
	assert.Equal(t, "0", resp.Header.Get("X-Snapshot-Index"))
	assert.True(t, strings.HasPrefix(string(body), "\x89PNG"))
}

func TestCutout_ServesRequestedVersion(t *testing.T) {
	ts := newTestServer(t, 4, 0)

	var first, second snapshotResponse
	resp, body := ts.selectPoints(t, `{"point_inds":[1]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &first))
	resp, body = ts.selectPoints(t, `{"point_inds":[2]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &second))
	require.Equal(t, first.Version+1, second.Version)

	resp, body = ts.get(t, fmt.Sprintf("/api/objects/%d/cutout.png?v=%d", ts.ObjectID(), first.Version))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, fmt.Sprint(first.Version), resp.Header.Get("X-Snapshot-Version"))
	assert.Equal(t, "1", resp.Header.Get("X-Snapshot-Index"))
	assert.Contains(t, resp.Header.Get("Cache-Control"), "immutable")
	assert.True(t, strings.HasPrefix(string(body), "\x89PNG"))

	resp, body = ts.get(t, fmt.Sprintf("/api/objects/%d/record?v=%d", ts.ObjectID(), first.Version))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec snapshotResponse
	require.NoError(t, json.Unmarshal(body, &rec))
	assert.Equal(t, 1, rec.Index)
	assert.Equal(t, first.Text, rec.Text)

	resp, _ = ts.get(t, fmt.Sprintf("/api/objects/%d/cutout.png", ts.ObjectID()))
	assert.Equal(t, "2", resp.Header.Get("X-Snapshot-Index"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
}

func TestCutout_UnknownVersion(t *testing.T) {
	ts := newTestServer(t, 3, 0)

	resp, _ := ts.get(t, fmt.Sprintf("/api/objects/%d/cutout.png?v=99", ts.ObjectID()))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = ts.get(t, fmt.Sprintf("/api/objects/%d/cutout.png?v=latest", ts.ObjectID()))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLightCurve(t *testing.T) {
	ts := newTestServer(t, 3, 2)

	resp, body := ts.get(t, fmt.Sprintf("/api/objects/%d/lightcurve", ts.ObjectID()))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Object struct {
			ObjectID int64             `json:"objectId"`
			LC       []json.RawMessage `json:"lc"`
		} `json:"object"`
		Colors []string `json:"colors"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, ts.ObjectID(), got.Object.ObjectID)
	assert.Len(t, got.Object.LC, 3)
	assert.Equal(t, []string{"#49be61", "#c61c00", "#ffc200"}, got.Colors)
}

func TestUnknownObject(t *testing.T) {
	ts := newTestServer(t, 3, 0)

	resp, _ := ts.get(t, "/objects/7")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = ts.get(t, "/objects/not-a-number")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, ts.registry.List())
}

func TestHealthAndVersion(t *testing.T) {
	ts := newTestServer(t, 3, 0)

	resp, body := ts.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)

	resp, body = ts.get(t, "/api/version")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v map[string]string
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, "dev", v["version"])
}

func TestButlerRoutes(t *testing.T) {
	ts := newTestServer(t, 3, 0)
	s := ts.Dataset.Sources[0]
	id := butler.DataID{Instrument: butler.DefaultInstrument, Visit: s.Visit, Detector: s.Detector}

	// The server's own butler routes back an HTTP store.
	remote := butler.NewHTTPStore(ts.srv.URL+"/butler", nil)
	got, err := remote.WCS(context.Background(), id)
	require.NoError(t, err)
	want, err := ts.Store.WCS(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{catalog.ErrObjectNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", butler.ErrNotFound), http.StatusNotFound},
		{butler.ErrOffSensor, http.StatusUnprocessableEntity},
		{render.ErrNoOverlap, http.StatusUnprocessableEntity},
		{dashboard.ErrEmptyLightCurve, http.StatusUnprocessableEntity},
		{catalog.ErrNotCatalog, http.StatusUnprocessableEntity},
		{fmt.Errorf("x: %w", dashboard.ErrSnapshotGone), http.StatusNotFound},
		{dashboard.ErrIndexOutOfRange, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusForError(tt.err), tt.err.Error())
	}
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"304"+colorReset, statusCodeColor(304))
	assert.Equal(t, colorBoldRed+"500"+colorReset, statusCodeColor(500))
	assert.Equal(t, "100", statusCodeColor(100))
}
