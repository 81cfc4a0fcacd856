package sensor

import (
	"errors"
	"time"
)

// Accepted value ranges, both ends inclusive. A reading of exactly 80°C
// or 0% humidity passes; 80.1 and -0.1 do not.
const (
	MinTemperature = -40.0 // °C
	MaxTemperature = 80.0  // °C
	MinHumidity    = 0.0   // %
	MaxHumidity    = 100.0 // %
)

// DefaultDeviceID is assumed when an ingestion call names no device.
const DefaultDeviceID = "ESP32_DEFAULT"

// Validation errors surfaced to ingestion callers.
var (
	ErrTemperatureOutOfRange = errors.New("temperature out of range")
	ErrHumidityOutOfRange    = errors.New("humidity out of range")
)

// Reading is a single telemetry sample owned by one user.
type Reading struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	DeviceID    string    `json:"device_id"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// RangeStats aggregates one measured quantity.
type RangeStats struct {
	Average float64 `json:"average"`
	Minimum float64 `json:"minimum"`
	Maximum float64 `json:"maximum"`
}

// Stats aggregates a user's readings. With no readings every field is
// zero rather than absent, so clients always see the same shape.
type Stats struct {
	TotalReadings int        `json:"total_readings"`
	Temperature   RangeStats `json:"temperature"`
	Humidity      RangeStats `json:"humidity"`
}

// ValidateRanges checks a temperature/humidity pair against the accepted
// bounds. Out-of-range values are rejected, never clamped.
func ValidateRanges(temperature, humidity float64) error {
	if temperature < MinTemperature || temperature > MaxTemperature {
		return ErrTemperatureOutOfRange
	}
	if humidity < MinHumidity || humidity > MaxHumidity {
		return ErrHumidityOutOfRange
	}
	return nil
}
