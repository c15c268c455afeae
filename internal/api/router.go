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

	// Paths match the deployed device firmware and mobile client.
	r.Post("/login", s.handle(s.handleLogin))
	r.Get("/sensor-data", s.handle(s.handleSensorData))
	r.Post("/upload_data", s.handle(s.handleUpload))

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	if s.live != nil {
		r.Get("/live", s.handleLive)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{keyMessage: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{keyMessage: "Method not allowed"})
	})

	return r
}
