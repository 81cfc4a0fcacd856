package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/nerrad567/sensorflow-hub/internal/sensor"
)

// maxQueryParamLen limits query parameter length to prevent DoS via oversized URL params.
const maxQueryParamLen = 100

// ingestRequest is the request body for POST /api/sensors/data.
// Temperature and humidity are pointers so an absent field is
// distinguishable from a legitimate zero.
type ingestRequest struct {
	DeviceID    string   `json:"device_id"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

// handleIngestReading validates and stores one reading for the caller.
func (s *Server) handleIngestReading(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "invalid or missing token")
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Temperature == nil || req.Humidity == nil {
		writeBadRequest(w, "temperature and humidity are required")
		return
	}

	reading, err := s.sensors.Record(r.Context(), user.ID, req.DeviceID, *req.Temperature, *req.Humidity)
	switch {
	case err == nil:
	case errors.Is(err, sensor.ErrTemperatureOutOfRange),
		errors.Is(err, sensor.ErrHumidityOutOfRange):
		writeValidationError(w, err.Error())
		return
	default:
		s.logger.Error("failed to store reading", "error", err, "user_id", user.ID)
		writeInternalError(w, "failed to store reading")
		return
	}

	writeJSON(w, http.StatusCreated, reading)
}

// handleListReadings returns the caller's readings, newest first.
// Supports ?limit= and ?device_id= filters.
func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "invalid or missing token")
		return
	}

	limit, err := parseListLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	deviceID := r.URL.Query().Get("device_id")
	if len(deviceID) > maxQueryParamLen {
		writeBadRequest(w, "invalid device_id")
		return
	}

	readings, err := s.sensors.List(r.Context(), user.ID, deviceID, limit)
	if err != nil {
		s.logger.Error("failed to list readings", "error", err, "user_id", user.ID)
		writeInternalError(w, "failed to list readings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(readings),
		"readings": readings,
	})
}

// handleReadingStats returns aggregate statistics over the caller's readings.
func (s *Server) handleReadingStats(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "invalid or missing token")
		return
	}

	stats, err := s.sensors.Stats(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("failed to compute stats", "error", err, "user_id", user.ID)
		writeInternalError(w, "failed to compute statistics")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleClearReadings deletes every reading the caller owns.
func (s *Server) handleClearReadings(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "invalid or missing token")
		return
	}

	deleted, err := s.sensors.Clear(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("failed to clear readings", "error", err, "user_id", user.ID)
		writeInternalError(w, "failed to clear readings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "readings cleared",
		"deleted": deleted,
	})
}

// parseListLimit parses the limit query parameter with bounds enforcement.
// Empty means "use the default".
func parseListLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > sensor.MaxListLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}

	return limit, nil
}
