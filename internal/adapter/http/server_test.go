package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	httpadapter "github.com/couchcryptid/commute-heatmap/internal/adapter/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type staticCities []string

func (c staticCities) Names() []string { return c }

func newTestServer(t *testing.T, readyErr error) (*httpadapter.Server, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leeds_heatmap.html"), []byte("<html>leeds</html>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leeds_contours.geojson"), []byte(`{"type":"FeatureCollection","features":[]}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(dir), "secret.html"), []byte("secret"), 0o600))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httpadapter.NewServer(":0", dir, staticCities{"Leeds", "London"}, &mockReadiness{err: readyErr}, logger)
	return srv, dir
}

func get(srv http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestCities(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := get(srv, "/cities")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"Leeds", "London"}, body["cities"])
}

func TestArtifact_Served(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := get(srv, "/static/preprocessing/leeds_heatmap.html")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "<html>leeds</html>", rec.Body.String())

	rec = get(srv, "/static/preprocessing/leeds_contours.geojson")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
}

func TestArtifact_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, target := range []string{
		"/static/preprocessing/york_heatmap.html",
		"/static/preprocessing/..%2Fsecret.html",
		"/static/preprocessing/.hidden.html",
		"/static/preprocessing/notes.txt",
	} {
		t.Run(target, func(t *testing.T) {
			rec := get(srv, target)
			assert.Equal(t, http.StatusNotFound, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "file not found", body["error"])
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/cities", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthzReturns200(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	assert.Equal(t, http.StatusOK, get(srv, "/healthz").Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	assert.Equal(t, http.StatusOK, get(srv, "/readyz").Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv, _ := newTestServer(t, fmt.Errorf("catalog not loaded"))
	assert.Equal(t, http.StatusServiceUnavailable, get(srv, "/readyz").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := get(srv, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
