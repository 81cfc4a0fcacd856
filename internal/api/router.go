package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Unknown routes and bad methods still get the JSON envelope
	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	// Service info and health (no auth required)
	r.Get("/", s.handleServiceInfo)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			// Open endpoints: account creation and the reset flow
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Post("/forgot-password", s.handleForgotPassword)
			r.Post("/verify-reset-code", s.handleVerifyResetCode)
			r.Post("/reset-password", s.handleResetPassword)

			// Session-guarded
			r.Group(func(r chi.Router) {
				r.Use(s.sessionMiddleware)
				r.Post("/logout", s.handleLogout)
				r.Get("/me", s.handleMe)
			})
		})

		// All sensor routes require a valid session
		r.Route("/sensors", func(r chi.Router) {
			r.Use(s.sessionMiddleware)
			r.Post("/data", s.handleIngestReading)
			r.Get("/data", s.handleListReadings)
			r.Get("/stats", s.handleReadingStats)
			r.Delete("/clear", s.handleClearReadings)
		})
	})

	return r
}

// handleNotFound returns the JSON error envelope for unknown routes.
func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeNotFound(w, "resource not found")
}

// handleMethodNotAllowed returns the JSON error envelope for known routes
// hit with the wrong method.
func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
}
