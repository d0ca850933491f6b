package butler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/banshee-data/lcviewer/internal/httputil"
	"github.com/banshee-data/lcviewer/internal/monitoring"
)

// Handler exposes store over HTTP for HTTPStore clients:
//
//	GET /calexp/wcs?instrument=&visit=&detector=     frame as JSON
//	GET /calexp/bbox?instrument=&visit=&detector=    detector box as JSON
//	GET /calexp/image?...&min_x=&min_y=&max_x=&max_y= float32 pixels
func Handler(store Store) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/calexp/wcs", func(w http.ResponseWriter, r *http.Request) {
		id, ok := dataIDFromRequest(w, r)
		if !ok {
			return
		}
		f, err := store.WCS(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		httputil.WriteJSONOK(w, f)
	})

	mux.HandleFunc("/calexp/bbox", func(w http.ResponseWriter, r *http.Request) {
		id, ok := dataIDFromRequest(w, r)
		if !ok {
			return
		}
		b, err := store.DetectorBBox(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		httputil.WriteJSONOK(w, newBBoxJSON(b))
	})

	mux.HandleFunc("/calexp/image", func(w http.ResponseWriter, r *http.Request) {
		id, ok := dataIDFromRequest(w, r)
		if !ok {
			return
		}
		box, err := parseBox(r.URL.Query())
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		g, err := store.Image(r.Context(), id, box)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		payload := EncodePixels(g)
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		if _, err := w.Write(payload); err != nil {
			monitoring.Logf("butler: failed to write pixels for %s: %v", id, err)
		}
	})

	return mux
}

func dataIDFromRequest(w http.ResponseWriter, r *http.Request) (DataID, bool) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return DataID{}, false
	}
	id, err := ParseDataID(r.URL.Query())
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return DataID{}, false
	}
	return id, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	monitoring.Logf("butler: %v", err)
	httputil.InternalServerError(w, err.Error())
}
