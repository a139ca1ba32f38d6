package api

import (
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/redsalud/turnos-board/internal/auth"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, authManager *auth.Manager) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	// CORS allows credentials so the dashboard can send the session cookie.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (no auth required)
	r.Get("/health", h.HealthCheck)

	if authManager != nil {
		r.Post("/auth/login", authManager.HandleLogin)
		r.Post("/auth/logout", authManager.HandleLogout)
		r.Get("/auth/user", authManager.HandleUserInfo)
	}

	devMode := os.Getenv("DEV_MODE") == "true" || os.Getenv("ENVIRONMENT") == "development"

	r.Route("/api", func(r chi.Router) {
		if authManager != nil && !devMode {
			r.Use(authManager.RequireAuth)
		}

		r.Route("/turnos", func(r chi.Router) {
			r.Post("/upload", h.HandleUpload)
			r.Get("/", h.HandleListTurnos)
			r.Get("/summary", h.HandleSummary)
			r.Get("/series", h.HandleSeries)
			r.Get("/heatmap", h.HandleHeatmap)
			r.Get("/top", h.HandleTop)
			r.Get("/pivot", h.HandlePivot)
			r.Get("/export", h.HandleExport)
		})
	})

	return r
}
