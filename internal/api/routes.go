package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)
	r.Get("/", s.HandleRoot)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.HandleLogin)
		r.Post("/refresh", s.HandleRefresh)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		// Users
		r.Route("/users", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListUsers)
			r.Post("/", s.HandleCreateUser)
			r.Get("/me", s.HandleGetCurrentUser)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetUser)
				r.Put("/", s.HandleUpdateUser)
				r.Delete("/", s.HandleDeleteUser)
			})
		})

		// Sensors
		r.Route("/sensors", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListSensors)
			r.Route("/{uid}", func(r chi.Router) {
				r.Get("/", s.HandleGetSensor)
				r.Put("/", s.HandleUpdateSensor)
				r.Delete("/", s.HandleDeleteSensor)
				r.Get("/scans", s.HandleListSensorScans)
				r.Post("/task", s.HandleRequestTask)
			})
		})

		// Scans
		r.Route("/scans", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListScans)
			r.Get("/{id}", s.HandleGetScan)
		})

		// Events
		r.Route("/events", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListEvents)
		})
	})
}
