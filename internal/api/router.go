package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/dlpapi/internal/api/handler"
	mw "github.com/iconidentify/dlpapi/internal/api/middleware"
	"github.com/iconidentify/dlpapi/internal/metrics"
)

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	downloadHandler *handler.DownloadHandler,
	healthHandler *handler.HealthHandler,
	authToken string,
	rateLimit mw.RateLimitConfig,
	requestTimeout time.Duration,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath) // Normalize paths (e.g., //ready -> /ready)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}

	// Health and metrics endpoints (no auth)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", metrics.Handler())

	// Downloads (authenticated, rate limited)
	r.Group(func(r chi.Router) {
		r.Use(mw.BearerAuth(authToken))
		r.Use(mw.RateLimit(rateLimit))

		r.Post("/download", downloadHandler.Download)
	})

	return r
}
