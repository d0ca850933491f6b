// Package api serves the light-curve dashboards over HTTP.
package api

import (
	"embed"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/lcviewer/internal/butler"
	"github.com/banshee-data/lcviewer/internal/dashboard"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

//go:embed templates/*
var templateFS embed.FS

var (
	indexTemplate     = template.Must(template.ParseFS(templateFS, "templates/index.html.tmpl"))
	dashboardTemplate = template.Must(template.ParseFS(templateFS, "templates/dashboard.html.tmpl"))
)

// maxSelectBody bounds the selection request body.
const maxSelectBody = 1 << 20

// Server routes requests to the dashboards of a registry.
type Server struct {
	registry *dashboard.Registry
	store    butler.Store
}

// NewServer returns a server over registry. When store is not nil its
// exposures are also served under /butler/.
func NewServer(registry *dashboard.Registry, store butler.Store) *Server {
	return &Server{registry: registry, store: store}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.index)
	mux.HandleFunc("GET /objects/{id}", s.dashboardPage)
	mux.HandleFunc("GET /objects/{id}/chart", s.chart)
	mux.HandleFunc("POST /api/objects/{id}/select", s.selectPoints)
	mux.HandleFunc("GET /api/objects/{id}/cutout.png", s.cutout)
	mux.HandleFunc("GET /api/objects/{id}/record", s.record)
	mux.HandleFunc("GET /api/objects/{id}/lightcurve", s.lightCurve)
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /api/version", s.showVersion)
	if s.store != nil {
		mux.Handle("/butler/", http.StripPrefix("/butler", butler.Handler(s.store)))
	}
	return mux
}
