// Package poll provides the voting page of the UI.
package poll

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/ballotbox/internal/session"
)

// SetupRoutes configures routes for the voting page.
func SetupRoutes(router chi.Router, sessions *session.Manager, logger *slog.Logger, isDev bool) error {
	handlers := NewHandlers(sessions, logger, isDev)

	router.Get("/", handlers.HomePage)
	router.Get("/updates", handlers.Updates)
	router.Post("/api/state/{section}/{name}", handlers.Activate)
	router.Post("/api/vote", handlers.Vote)

	return nil
}
