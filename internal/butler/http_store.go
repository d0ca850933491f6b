package butler

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/banshee-data/lcviewer/internal/httputil"
	"github.com/banshee-data/lcviewer/internal/pixel"
	"github.com/banshee-data/lcviewer/internal/wcs"
)

// StatusError is returned by HTTPStore for unexpected response codes.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("butler service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("butler service returned %d: %s", e.StatusCode, e.Message)
}

// HTTPStore reads exposures from a remote data access service speaking the
// protocol served by Handler.
type HTTPStore struct {
	baseURL string
	client  httputil.HTTPClient
}

// NewHTTPStore returns a store rooted at baseURL, e.g.
// "http://butler.local:8080/butler".
func NewHTTPStore(baseURL string, client httputil.HTTPClient) *HTTPStore {
	if client == nil {
		client = httputil.NewStandardClient(nil)
	}
	return &HTTPStore{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (s *HTTPStore) WCS(ctx context.Context, id DataID) (wcs.Frame, error) {
	var f wcs.Frame
	err := s.getJSON(ctx, "/calexp/wcs", dataIDQuery(id), &f)
	return f, err
}

func (s *HTTPStore) DetectorBBox(ctx context.Context, id DataID) (image.Rectangle, error) {
	var b bboxJSON
	if err := s.getJSON(ctx, "/calexp/bbox", dataIDQuery(id), &b); err != nil {
		return image.Rectangle{}, err
	}
	return b.rect(), nil
}

func (s *HTTPStore) Image(ctx context.Context, id DataID, box image.Rectangle) (pixel.Grid, error) {
	q := dataIDQuery(id)
	setBoxQuery(q, box)
	resp, err := s.get(ctx, "/calexp/image", q)
	if err != nil {
		return pixel.Grid{}, err
	}
	defer resp.Body.Close()
	return ReadPixels(resp.Body, box.Dx(), box.Dy())
}

func (s *HTTPStore) getJSON(ctx context.Context, path string, q url.Values, v interface{}) error {
	resp, err := s.get(ctx, path, q)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func (s *HTTPStore) get(ctx context.Context, path string, q url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("butler request %s: %w", path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	statusErr := &StatusError{StatusCode: resp.StatusCode, Message: httputil.ErrorMessage(resp)}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w (%v)", ErrNotFound, statusErr)
	}
	return nil, statusErr
}

type bboxJSON struct {
	MinX int `json:"min_x"`
	MinY int `json:"min_y"`
	MaxX int `json:"max_x"`
	MaxY int `json:"max_y"`
}

func newBBoxJSON(r image.Rectangle) bboxJSON {
	return bboxJSON{MinX: r.Min.X, MinY: r.Min.Y, MaxX: r.Max.X, MaxY: r.Max.Y}
}

func (b bboxJSON) rect() image.Rectangle {
	return image.Rect(b.MinX, b.MinY, b.MaxX, b.MaxY)
}

func dataIDQuery(id DataID) url.Values {
	id = id.WithDefaults()
	q := url.Values{}
	q.Set("instrument", id.Instrument)
	q.Set("visit", strconv.FormatInt(id.Visit, 10))
	q.Set("detector", strconv.Itoa(id.Detector))
	return q
}

func setBoxQuery(q url.Values, box image.Rectangle) {
	q.Set("min_x", strconv.Itoa(box.Min.X))
	q.Set("min_y", strconv.Itoa(box.Min.Y))
	q.Set("max_x", strconv.Itoa(box.Max.X))
	q.Set("max_y", strconv.Itoa(box.Max.Y))
}

// ParseDataID reads instrument, visit and detector from query parameters.
func ParseDataID(q url.Values) (DataID, error) {
	visit, err := strconv.ParseInt(q.Get("visit"), 10, 64)
	if err != nil {
		return DataID{}, fmt.Errorf("invalid visit %q", q.Get("visit"))
	}
	detector, err := strconv.Atoi(q.Get("detector"))
	if err != nil {
		return DataID{}, fmt.Errorf("invalid detector %q", q.Get("detector"))
	}
	return DataID{Instrument: q.Get("instrument"), Visit: visit, Detector: detector}.WithDefaults(), nil
}

func parseBox(q url.Values) (image.Rectangle, error) {
	var v [4]int
	for i, key := range []string{"min_x", "min_y", "max_x", "max_y"} {
		n, err := strconv.Atoi(q.Get(key))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("invalid %s %q", key, q.Get(key))
		}
		v[i] = n
	}
	box := image.Rect(v[0], v[1], v[2], v[3])
	if box.Empty() {
		return image.Rectangle{}, fmt.Errorf("empty box %v", box)
	}
	return box, nil
}
