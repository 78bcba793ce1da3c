// Package web wires the HTTP server: router, middleware stack and routes.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/alert"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/config"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/descriptor"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/geo"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/metrics"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/store"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/web/handlers"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/web/middleware"
)

// Deps bundles the collaborators the API serves.
type Deps struct {
	Store     store.Store
	Extractor *descriptor.Extractor
	Alerts    *alert.Service
	Media     *handlers.MediaStore
	Position  geo.Provider
	Log       *zap.Logger
}

// Server represents the web server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer creates a new web server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second))
	r.Use(metrics.Middleware())
	r.Use(middleware.WithRole)

	s := &Server{
		router: r,
		log:    log,
	}
	s.setupRoutes(deps)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info("starting web server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
