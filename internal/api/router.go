// Package api exposes the bot's ops HTTP surface: probes, stats and the
// activity log.
package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/grabbot/internal/api/handler"
	mw "github.com/iconidentify/grabbot/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	healthHandler *handler.HealthHandler,
	eventHandler *handler.EventHandler,
	apiKey string,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))
	r.Use(middleware.Timeout(30 * time.Second))

	// Probes (no auth)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey))

		r.Get("/stats", healthHandler.Stats)

		r.Route("/events", func(r chi.Router) {
			r.Get("/", eventHandler.List)
			r.Get("/recent", eventHandler.Recent)
			r.Get("/stats", eventHandler.Stats)
			r.Get("/categories", eventHandler.Categories)
		})
	})

	return r
}
