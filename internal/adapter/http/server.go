// Package http serves the city list and rendered heatmap artifacts, plus
// health, readiness and metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CityLister supplies the names served at /cities.
type CityLister interface {
	Names() []string
}

var contentTypes = map[string]string{
	".html":    "text/html; charset=utf-8",
	".png":     "image/png",
	".geojson": "application/geo+json",
	".json":    "application/json",
}

// Server is the map server.
type Server struct {
	httpServer *http.Server
	staticDir  string
	cities     CityLister
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /cities, /static/preprocessing/{file},
// /healthz, /readyz, and /metrics routes. Artifacts are read from staticDir.
func NewServer(addr, staticDir string, cities CityLister, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      withCORS(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		staticDir: staticDir,
		cities:    cities,
		logger:    logger,
	}

	mux.HandleFunc("GET /cities", s.handleCities)
	mux.HandleFunc("GET /static/preprocessing/{file}", s.handleArtifact)
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr, "static_dir", s.staticDir)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleCities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"cities": s.cities.Names()})
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	ctype, ok := contentTypes[strings.ToLower(filepath.Ext(name))]
	if !ok || !safeName(name) {
		s.notFound(w, name)
		return
	}

	f, err := os.Open(filepath.Join(s.staticDir, name))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("artifact open failed", "file", name, "error", err)
		}
		s.notFound(w, name)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		s.notFound(w, name)
		return
	}
	w.Header().Set("Content-Type", ctype)
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) notFound(w http.ResponseWriter, name string) {
	s.logger.Debug("artifact not found", "file", name)
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "file not found"})
}

// safeName accepts a plain file name inside the static directory.
func safeName(name string) bool {
	return name != "" &&
		!strings.HasPrefix(name, ".") &&
		!strings.ContainsAny(name, `/\`) &&
		filepath.Base(name) == name
}

// withCORS allows any origin to read the map server's GET endpoints.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
