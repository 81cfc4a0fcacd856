package api

import (
	"net/http"
)

// handleServiceInfo returns the service card: name, version, active
// storage variant and the endpoint catalogue. Useful as a first probe
// when wiring up a device or client.
func (s *Server) handleServiceInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "sensorflow-hub",
		"version": s.version,
		"storage": s.storageDriver,
		"endpoints": map[string]string{
			"register":        "POST /api/auth/register",
			"login":           "POST /api/auth/login",
			"logout":          "POST /api/auth/logout",
			"me":              "GET /api/auth/me",
			"forgot_password": "POST /api/auth/forgot-password",
			"verify_reset":    "POST /api/auth/verify-reset-code",
			"reset_password":  "POST /api/auth/reset-password",
			"ingest":          "POST /api/sensors/data",
			"readings":        "GET /api/sensors/data",
			"stats":           "GET /api/sensors/stats",
			"clear":           "DELETE /api/sensors/clear",
		},
	})
}

// handleHealth reports liveness. The durable variant pings the database;
// MQTT and InfluxDB connection states appear when those integrations are
// configured. A failing database turns the response into a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	health := map[string]any{
		"status":  "ok",
		"version": s.version,
		"storage": s.storageDriver,
	}

	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err != nil {
			s.logger.Error("health check: database unavailable", "error", err)
			health["status"] = "degraded"
			health["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			health["database"] = "ok"
		}
	}

	if s.mqtt != nil {
		health["mqtt"] = connectionState(s.mqtt.IsConnected())
	}
	if s.influx != nil {
		health["influxdb"] = connectionState(s.influx.IsConnected())
	}

	writeJSON(w, status, health)
}

func connectionState(connected bool) string {
	if connected {
		return "connected"
	}
	return "disconnected"
}
