package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/lcviewer/internal/butler"
	"github.com/banshee-data/lcviewer/internal/catalog"
	"github.com/banshee-data/lcviewer/internal/dashboard"
	"github.com/banshee-data/lcviewer/internal/httputil"
	"github.com/banshee-data/lcviewer/internal/monitoring"
	"github.com/banshee-data/lcviewer/internal/render"
	"github.com/banshee-data/lcviewer/internal/version"
)

// statusForError maps dashboard errors to response codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, catalog.ErrObjectNotFound), errors.Is(err, butler.ErrNotFound),
		errors.Is(err, dashboard.ErrSnapshotGone):
		return http.StatusNotFound
	case errors.Is(err, butler.ErrOffSensor), errors.Is(err, render.ErrNoOverlap),
		errors.Is(err, dashboard.ErrEmptyLightCurve), errors.Is(err, catalog.ErrNotCatalog):
		return http.StatusUnprocessableEntity
	case errors.Is(err, dashboard.ErrIndexOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		monitoring.Logf("api: %v", err)
	}
	httputil.WriteJSONError(w, status, err.Error())
}

// objectDashboard resolves the {id} path value, building the dashboard
// on first use.
func (s *Server) objectDashboard(w http.ResponseWriter, r *http.Request) (*dashboard.Dashboard, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid object id %q", r.PathValue("id")))
		return nil, false
	}
	d, err := s.registry.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	d.Touch()
	return d, true
}

type indexRow struct {
	ObjectID int64
	Rows     int
	Index    int
	Session  string
	Created  time.Time
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	var rows []indexRow
	for _, d := range s.registry.List() {
		row := indexRow{
			ObjectID: d.Object().ObjectID,
			Rows:     len(d.Object().LC),
			Session:  d.Session,
			Created:  d.Created,
		}
		if snap := d.Current(); snap != nil {
			row.Index = snap.Index
		}
		rows = append(rows, row)
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, map[string]interface{}{
		"Dashboards": rows,
		"Version":    version.String(),
	}); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render index: %v", err))
		return
	}
	httputil.WriteHTML(w, buf.Bytes())
}

type pageData struct {
	ObjectID    int64
	RA, Dec     float64
	Rows        int
	Session     string
	Version     uint64
	Text        string
	MessageType string
}

func (s *Server) dashboardPage(w http.ResponseWriter, r *http.Request) {
	d, ok := s.objectDashboard(w, r)
	if !ok {
		return
	}
	obj := d.Object()
	snap := d.Current()
	data := pageData{
		ObjectID:    obj.ObjectID,
		RA:          obj.CoordRA,
		Dec:         obj.CoordDec,
		Rows:        len(obj.LC),
		Session:     d.Session,
		Version:     snap.Version,
		Text:        snap.Text,
		MessageType: dashboard.SelectMessageType,
	}

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, data); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render dashboard: %v", err))
		return
	}
	httputil.WriteHTML(w, buf.Bytes())
}

func (s *Server) chart(w http.ResponseWriter, r *http.Request) {
	d, ok := s.objectDashboard(w, r)
	if !ok {
		return
	}
	httputil.WriteHTML(w, d.ChartHTML())
}

type selectRequest struct {
	PointInds []int `json:"point_inds"`
}

// snapshotResponse describes the displayed panes.
type snapshotResponse struct {
	ObjectID int64     `json:"object_id"`
	Session  string    `json:"session"`
	Index    int       `json:"index"`
	Version  uint64    `json:"version"`
	Text     string    `json:"text"`
	State    string    `json:"state"`
	Updated  time.Time `json:"updated"`
}

func newSnapshotResponse(d *dashboard.Dashboard, snap *dashboard.Snapshot) snapshotResponse {
	return snapshotResponse{
		ObjectID: d.Object().ObjectID,
		Session:  d.Session,
		Index:    snap.Index,
		Version:  snap.Version,
		Text:     snap.Text,
		State:    d.State().String(),
		Updated:  snap.Updated,
	}
}

func (s *Server) selectPoints(w http.ResponseWriter, r *http.Request) {
	d, ok := s.objectDashboard(w, r)
	if !ok {
		return
	}

	var req selectRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSelectBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid selection: %v", err))
		return
	}

	snap, err := d.Select(r.Context(), req.PointInds)
	if err != nil {
		writeError(w, err)
		return
	}
	if snap == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSONOK(w, newSnapshotResponse(d, snap))
}

// requestedSnapshot returns the snapshot named by the v query parameter,
// or the displayed one when v is absent.
func requestedSnapshot(w http.ResponseWriter, r *http.Request, d *dashboard.Dashboard) (*dashboard.Snapshot, bool) {
	v := r.URL.Query().Get("v")
	if v == "" {
		return d.Current(), true
	}
	version, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid version %q", v))
		return nil, false
	}
	snap, err := d.Snapshot(version)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return snap, true
}

func (s *Server) cutout(w http.ResponseWriter, r *http.Request) {
	d, ok := s.objectDashboard(w, r)
	if !ok {
		return
	}
	snap, ok := requestedSnapshot(w, r, d)
	if !ok {
		return
	}
	png, err := snap.PNG()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to encode cutout: %v", err))
		return
	}
	// A versioned snapshot never changes; the unversioned URL follows the view.
	if r.URL.Query().Has("v") {
		w.Header().Set("Cache-Control", "private, max-age=3600, immutable")
	} else {
		w.Header().Set("Cache-Control", "no-cache")
	}
	w.Header().Set("X-Snapshot-Version", strconv.FormatUint(snap.Version, 10))
	w.Header().Set("X-Snapshot-Index", strconv.Itoa(snap.Index))
	httputil.WriteBytes(w, http.StatusOK, "image/png", png)
}

func (s *Server) record(w http.ResponseWriter, r *http.Request) {
	d, ok := s.objectDashboard(w, r)
	if !ok {
		return
	}
	snap, ok := requestedSnapshot(w, r, d)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, newSnapshotResponse(d, snap))
}

func (s *Server) lightCurve(w http.ResponseWriter, r *http.Request) {
	d, ok := s.objectDashboard(w, r)
	if !ok {
		return
	}
	obj := d.Object()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"object": obj,
		"colors": d.Colors(),
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":     "ok",
		"dashboards": len(s.registry.List()),
	})
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}
