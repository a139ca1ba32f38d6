package api

import (
	"context"
	"net/http"
	"time"

	"github.com/redsalud/turnos-board/internal/auth"
	"github.com/redsalud/turnos-board/internal/config"
)

// Server represents the API server.
type Server struct {
	config   config.ServerConfig
	handler  http.Handler
	handlers *Handlers
	server   *http.Server
}

// NewServer creates the API server. A nil auth manager leaves every route
// open, which is only meant for local development.
func NewServer(cfg config.ServerConfig, handlers *Handlers, authManager *auth.Manager) *Server {
	handler := SetupRoutes(handlers, authManager)
	return &Server{
		config:   cfg,
		handler:  handler,
		handlers: handlers,
		server: &http.Server{
			Addr:    cfg.Addr(),
			Handler: handler,
			// Read and write timeouts stay generous for multi-file uploads;
			// individual endpoints rely on context deadlines.
			ReadTimeout:       5 * time.Minute,
			ReadHeaderTimeout: 15 * time.Second,
			WriteTimeout:      5 * time.Minute,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// ListenAndServe starts the HTTP server on the configured address.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
