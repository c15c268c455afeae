package api

import (
	"context"
	"net/http"
	"time"

	"github.com/nerrad567/ips-core/internal/infrastructure/database"
)

// healthTimeout bounds the checks behind GET /health.
const healthTimeout = 5 * time.Second

// Integration health states reported by /health.
const (
	healthOK          = "ok"
	healthUnavailable = "unavailable"
)

// handleHealth reports 503 when no store connection can be acquired.
// Enabled integrations are reported alongside; a failing one turns the
// status to "degraded" but keeps 200, since uploads still succeed.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := database.Ping(ctx, s.provider); err != nil {
		s.logger.Warn("health check failed", "error", err, "request_id", requestIDFrom(r.Context()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"error":  "database unreachable",
		})
		return
	}

	body := map[string]any{
		"status":  "ok",
		"version": s.version,
	}
	for name, hc := range s.integrations() {
		state := healthOK
		if err := hc.HealthCheck(ctx); err != nil {
			s.logger.Warn("integration unhealthy", "integration", name, "error", err)
			state = healthUnavailable
			body["status"] = "degraded"
		}
		body[name] = state
	}

	writeJSON(w, http.StatusOK, body)
}

// integrations returns the enabled integrations by name.
func (s *Server) integrations() map[string]HealthChecker {
	m := make(map[string]HealthChecker, 2)
	if s.mqtt != nil {
		m["mqtt"] = s.mqtt
	}
	if s.influxdb != nil {
		m["influxdb"] = s.influxdb
	}
	return m
}
