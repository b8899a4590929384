package api

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// handleHealth reports the database and, when configured, the MQTT link.
// A failed database answers 503; a down MQTT link only degrades.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	checks := map[string]string{}

	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn("database health check failed", "error", err)
			checks["database"] = "unavailable"
			status = "unavailable"
			code = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}

	if s.mqtt != nil {
		if err := s.mqtt.HealthCheck(ctx); err != nil {
			checks["mqtt"] = "disconnected"
			if status == "ok" {
				status = "degraded"
			}
		} else {
			checks["mqtt"] = "ok"
		}
	}

	writeJSON(w, code, map[string]any{
		"status":   status,
		"version":  s.version,
		"sessions": s.sessions.Len(),
		"checks":   checks,
	})
}
