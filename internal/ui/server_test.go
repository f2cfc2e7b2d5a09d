package ui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ballotbox/internal/testutil"
	"github.com/leapstack-labs/ballotbox/internal/ui/features"
)

func TestServer_Handler(t *testing.T) {
	fixture := features.SetupTestFixture(t)
	s := NewServer(Config{Sessions: fixture.Sessions, Logger: testutil.NewTestLogger(t)})

	h, err := s.Handler()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hotreload", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "reload routes are dev only")
}

func TestServer_WatchWithoutDirIsDisabled(t *testing.T) {
	s := NewServer(Config{Watch: true})
	assert.False(t, s.watch)
	assert.Equal(t, DefaultSweepInterval, s.sweep)
}

func TestServer_WatchTriggersReload(t *testing.T) {
	dir := t.TempDir()
	s := NewServer(Config{Watch: true, StaticDir: dir, Logger: testutil.NewTestLogger(t)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.watchFiles(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.css"), []byte("body{}"), 0600))

	select {
	case <-s.reload.Requests():
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after a static asset changed")
	}
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	fixture := features.SetupTestFixture(t)
	s := NewServer(Config{Sessions: fixture.Sessions, Port: 0, Logger: testutil.NewTestLogger(t)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
