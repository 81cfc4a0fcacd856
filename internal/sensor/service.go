package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// ReadingMirror receives accepted readings for out-of-band export, such
// as a time-series database. Mirroring is best-effort: implementations
// must not block ingestion and failures must not reject the reading.
type ReadingMirror interface {
	MirrorReading(userID, deviceID string, temperature, humidity float64, at time.Time)
}

// Service validates and records readings and answers scoped queries.
// A nil mirror disables export.
type Service struct {
	repo   Repository
	mirror ReadingMirror
	logger *slog.Logger
}

// NewService creates the sensor service. The repository is required.
func NewService(repo Repository, mirror ReadingMirror, logger *slog.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sensor service requires a repository")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, mirror: mirror, logger: logger}, nil
}

// Record validates and stores one reading for the user. An empty device
// id takes the default. The stored reading is returned with its
// generated ID and timestamp.
func (s *Service) Record(ctx context.Context, userID, deviceID string, temperature, humidity float64) (*Reading, error) {
	if err := ValidateRanges(temperature, humidity); err != nil {
		return nil, err
	}
	if deviceID == "" {
		deviceID = DefaultDeviceID
	}

	reading := &Reading{
		UserID:      userID,
		DeviceID:    deviceID,
		Temperature: temperature,
		Humidity:    humidity,
		RecordedAt:  time.Now().UTC().Truncate(time.Second),
	}
	if err := s.repo.Insert(ctx, reading); err != nil {
		return nil, err
	}

	if s.mirror != nil {
		s.mirror.MirrorReading(reading.UserID, reading.DeviceID,
			reading.Temperature, reading.Humidity, reading.RecordedAt)
	}

	s.logger.Debug("reading recorded",
		"user_id", reading.UserID,
		"device_id", reading.DeviceID,
		"temperature", reading.Temperature,
		"humidity", reading.Humidity,
	)
	return reading, nil
}

// List returns the user's readings newest first.
func (s *Service) List(ctx context.Context, userID, deviceID string, limit int) ([]Reading, error) {
	return s.repo.ListByUser(ctx, userID, ListOptions{DeviceID: deviceID, Limit: limit})
}

// Stats aggregates the user's readings, rounding every figure to two
// decimal places for display.
func (s *Service) Stats(ctx context.Context, userID string) (*Stats, error) {
	stats, err := s.repo.StatsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats.Temperature = roundedRange(stats.Temperature)
	stats.Humidity = roundedRange(stats.Humidity)
	return stats, nil
}

// Clear removes all of the user's readings and reports how many went.
func (s *Service) Clear(ctx context.Context, userID string) (int64, error) {
	count, err := s.repo.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("readings cleared", "user_id", userID, "count", count)
	return count, nil
}

// roundedRange rounds each aggregate to two decimal places.
func roundedRange(r RangeStats) RangeStats {
	return RangeStats{
		Average: round2(r.Average),
		Minimum: round2(r.Minimum),
		Maximum: round2(r.Maximum),
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100 //nolint:mnd // two decimal places
}
