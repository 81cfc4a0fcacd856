package sensor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryCapPerUser bounds the ephemeral store: only the newest readings
// per user are kept, older ones roll off.
const memoryCapPerUser = 100

// MemoryRepository implements Repository with a mutex-guarded map of
// per-user reading slices. State is lost on restart.
type MemoryRepository struct {
	readings map[string][]Reading // keyed by user ID, oldest first
	mu       sync.RWMutex
}

// NewMemoryRepository creates an empty in-memory reading repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{readings: make(map[string][]Reading)}
}

// Insert appends a reading, evicting the oldest when the per-user cap is
// reached.
func (r *MemoryRepository) Insert(_ context.Context, reading *Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if reading.ID == "" {
		reading.ID = "rdg-" + uuid.NewString()[:8]
	}
	if reading.RecordedAt.IsZero() {
		reading.RecordedAt = time.Now().UTC().Truncate(time.Second)
	}

	list := append(r.readings[reading.UserID], *reading)
	if len(list) > memoryCapPerUser {
		list = list[len(list)-memoryCapPerUser:]
	}
	r.readings[reading.UserID] = list
	return nil
}

// ListByUser returns the user's readings newest first, honouring the
// device filter and limit.
func (r *MemoryRepository) ListByUser(_ context.Context, userID string, opts ListOptions) ([]Reading, error) {
	limit := clampLimit(opts.Limit)

	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.readings[userID]
	out := make([]Reading, 0, limit)
	for i := len(stored) - 1; i >= 0 && len(out) < limit; i-- {
		if opts.DeviceID != "" && stored[i].DeviceID != opts.DeviceID {
			continue
		}
		out = append(out, stored[i])
	}
	return out, nil
}

// StatsByUser aggregates the user's stored readings.
func (r *MemoryRepository) StatsByUser(_ context.Context, userID string) (*Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.readings[userID]
	stats := &Stats{TotalReadings: len(stored)}
	if len(stored) == 0 {
		return stats, nil
	}

	first := stored[0]
	stats.Temperature = RangeStats{Minimum: first.Temperature, Maximum: first.Temperature}
	stats.Humidity = RangeStats{Minimum: first.Humidity, Maximum: first.Humidity}

	var sumT, sumH float64
	for _, rd := range stored {
		sumT += rd.Temperature
		sumH += rd.Humidity
		if rd.Temperature < stats.Temperature.Minimum {
			stats.Temperature.Minimum = rd.Temperature
		}
		if rd.Temperature > stats.Temperature.Maximum {
			stats.Temperature.Maximum = rd.Temperature
		}
		if rd.Humidity < stats.Humidity.Minimum {
			stats.Humidity.Minimum = rd.Humidity
		}
		if rd.Humidity > stats.Humidity.Maximum {
			stats.Humidity.Maximum = rd.Humidity
		}
	}
	stats.Temperature.Average = sumT / float64(len(stored))
	stats.Humidity.Average = sumH / float64(len(stored))

	return stats, nil
}

// DeleteByUser drops all of the user's readings.
func (r *MemoryRepository) DeleteByUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := int64(len(r.readings[userID]))
	delete(r.readings, userID)
	return count, nil
}
