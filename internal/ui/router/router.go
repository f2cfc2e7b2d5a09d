// Package router sets up HTTP routes for the UI server.
package router

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/ballotbox/internal/session"
	pollFeature "github.com/leapstack-labs/ballotbox/internal/ui/features/poll"
	"github.com/leapstack-labs/ballotbox/internal/ui/resources"
)

// Reloader tells dev browsers to reload the page.
type Reloader struct {
	ch chan struct{}
}

// NewReloader creates a Reloader.
func NewReloader() *Reloader {
	return &Reloader{ch: make(chan struct{}, 1)}
}

// Trigger requests a reload. Triggers coalesce until a browser picks
// them up.
func (r *Reloader) Trigger() {
	select {
	case r.ch <- struct{}{}:
	default:
	}
}

// Requests delivers pending reload requests.
func (r *Reloader) Requests() <-chan struct{} {
	return r.ch
}

// SetupRoutes configures all routes for the UI server.
func SetupRoutes(
	router chi.Router,
	sessions *session.Manager,
	reload *Reloader,
	logger *slog.Logger,
	isDev bool,
) error {
	if isDev {
		setupReload(router, reload)
	}

	router.Handle("/static/*", resources.Handler())
	router.Handle("/metrics", promhttp.Handler())

	return pollFeature.SetupRoutes(router, sessions, logger, isDev)
}

func setupReload(router chi.Router, reload *Reloader) {
	var hotReloadOnce sync.Once

	router.Get("/reload", func(w http.ResponseWriter, r *http.Request) {
		sse := datastar.NewSSE(w, r)
		reloadPage := func() { _ = sse.ExecuteScript("window.location.reload()") }
		hotReloadOnce.Do(reloadPage)
		select {
		case <-reload.Requests():
			reloadPage()
		case <-r.Context().Done():
		}
	})

	router.Get("/hotreload", func(w http.ResponseWriter, _ *http.Request) {
		reload.Trigger()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}
