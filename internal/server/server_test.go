package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/auth-backend/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		Port:          8080,
		DBPath:        filepath.Join(dir, "test.db"),
		UploadDir:     filepath.Join(dir, "uploads"),
		PublicBaseURL: "http://localhost:8080",
		AccessSecret:  "access-secret-16-chars!!",
		RefreshSecret: "refresh-secret-16-chars!",
		AccessTTL:     config.DefaultAccessTokenTTL,
		RefreshTTL:    config.DefaultRefreshTokenTTL,
		LogLevel:      slog.LevelError,
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	srv, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestProtectedRoutesRejectAnonymous(t *testing.T) {
	srv := newTestServer(t)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/auth/logout"},
		{http.MethodGet, "/api/me"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rr := httptest.NewRecorder()
		srv.Router().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "%s %s", tc.method, tc.path)
		// Same JSON error shape as every other endpoint.
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"), "%s %s", tc.method, tc.path)
		assert.Contains(t, rr.Body.String(), `"error":"unauthorized"`)
	}
}

func TestProfileImagesAreServedStatically(t *testing.T) {
	srv := newTestServer(t)

	// Drop a file into the upload dir and fetch it over the static route.
	name := "123-abc.png"
	require.NoError(t, os.WriteFile(filepath.Join(srv.config.UploadDir, name), []byte("png-bytes"), 0o644))

	req := httptest.NewRequest(http.MethodGet, "/profile-images/"+name, nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "png-bytes", rr.Body.String())
}

func TestProfileImagesDirectoryIsNotListed(t *testing.T) {
	srv := newTestServer(t)

	name := "123-abc.png"
	require.NoError(t, os.WriteFile(filepath.Join(srv.config.UploadDir, name), []byte("png-bytes"), 0o644))

	// Requesting the directory itself must not enumerate the uploads.
	req := httptest.NewRequest(http.MethodGet, "/profile-images/", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.NotContains(t, rr.Body.String(), name)
}

func TestUnknownRouteIs404(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
