// Package api wires the HTTP router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Veraticus/tgpulse/internal/api/middleware"
	"github.com/Veraticus/tgpulse/internal/handlers"
)

// maxBodyBytes bounds request bodies; every body is a small JSON object.
const maxBodyBytes = 8 * 1024

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.SessionTokenHeader, handlers.PhoneHeader},
		AllowCredentials: !allowsAny(corsOrigins),
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/send-code", h.SendCode)
		r.Post("/sign-in", h.SignIn)
		r.Post("/sign-in-password", h.SignInPassword)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession)

			r.Post("/logout", h.Logout)
			r.Get("/stats", h.Stats)
			r.Get("/activities", h.Activities)
			r.Get("/activity-chart", h.ActivityChart)
			r.Get("/status", h.Status)
		})
	})

	return r
}

// allowsAny reports whether origins contains the wildcard, which browsers
// refuse together with credentials.
func allowsAny(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
