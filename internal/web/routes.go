package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/web/handlers"
)

func (s *Server) setupRoutes(deps Deps) {
	casesHandler := handlers.NewCasesHandler(deps.Store, deps.Extractor, deps.Media, s.log)
	matchesHandler := handlers.NewMatchesHandler(deps.Alerts, deps.Extractor, deps.Media, deps.Position, s.log)
	alertsHandler := handlers.NewAlertsHandler(deps.Alerts, deps.Store)

	s.router.Get("/metrics", promhttp.Handler().ServeHTTP)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		// Cases
		r.Post("/cases", casesHandler.Create)
		r.Get("/cases", casesHandler.List)
		r.Get("/cases/{id}", casesHandler.Get)
		r.Put("/cases/{id}/status", casesHandler.UpdateStatus)

		// Sightings
		r.Post("/matches", matchesHandler.Create)

		// Alerts
		r.Get("/alerts", alertsHandler.List)
		r.Get("/alerts/{id}", alertsHandler.Get)
		r.Post("/alerts/{id}/assign", alertsHandler.Assign)
		r.Post("/alerts/{id}/reject", alertsHandler.Reject)
		r.Post("/alerts/{id}/complete", alertsHandler.Complete)
	})
}
