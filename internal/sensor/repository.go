package sensor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// List limits. The reference ESP32 clients poll with small limits; the
// clamp stops an arbitrary query parameter turning into a full scan.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// ListOptions narrows a reading query.
type ListOptions struct {
	// DeviceID filters to one device when non-empty.
	DeviceID string

	// Limit caps the number of rows (default 100, max 1000).
	Limit int
}

// Repository stores and retrieves sensor readings.
//
// Implementations must be safe for concurrent use and must scope every
// operation to the given user.
type Repository interface {
	// Insert persists a reading. The ID is generated if empty and a zero
	// RecordedAt becomes the current time.
	Insert(ctx context.Context, reading *Reading) error

	// ListByUser returns the user's readings ordered newest first.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - userID: Owning user, never blank
	//   - opts: Device filter and row limit
	//
	// Returns:
	//   - []Reading: Matching readings, empty slice when none
	//   - error: nil on success, otherwise the underlying query error
	ListByUser(ctx context.Context, userID string, opts ListOptions) ([]Reading, error)

	// StatsByUser aggregates the user's readings. With no rows the
	// zero-valued Stats is returned, not an error.
	StatsByUser(ctx context.Context, userID string) (*Stats, error)

	// DeleteByUser removes all of the user's readings and reports how
	// many were deleted.
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed reading repository.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteRepository: Repository instance ready for use
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Insert persists a reading row.
func (r *SQLiteRepository) Insert(ctx context.Context, reading *Reading) error {
	if reading.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if reading.ID == "" {
		reading.ID = "rdg-" + uuid.NewString()[:8]
	}
	if reading.RecordedAt.IsZero() {
		reading.RecordedAt = time.Now().UTC().Truncate(time.Second)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sensor_readings (id, user_id, device_id, temperature, humidity, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		reading.ID, reading.UserID, reading.DeviceID,
		reading.Temperature, reading.Humidity,
		reading.RecordedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}

	return nil
}

// ListByUser returns readings for a user ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - userID: Owning user
//   - opts: Device filter and row limit (default 100, max 1000)
//
// Returns:
//   - []Reading: Readings ordered by recorded_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteRepository) ListByUser(ctx context.Context, userID string, opts ListOptions) ([]Reading, error) {
	limit := clampLimit(opts.Limit)

	query := `SELECT id, user_id, device_id, temperature, humidity, recorded_at
		 FROM sensor_readings WHERE user_id = ?`
	args := []any{userID}
	if opts.DeviceID != "" {
		query += " AND device_id = ?"
		args = append(args, opts.DeviceID)
	}
	query += " ORDER BY recorded_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	readings := make([]Reading, 0, limit)
	for rows.Next() {
		var rd Reading
		var recordedAt string

		if err := rows.Scan(&rd.ID, &rd.UserID, &rd.DeviceID,
			&rd.Temperature, &rd.Humidity, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}

		rd.RecordedAt, err = time.Parse(time.RFC3339, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing recorded_at: %w", err)
		}

		readings = append(readings, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}

	return readings, nil
}

// StatsByUser aggregates readings in the database.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - userID: Owning user
//
// Returns:
//   - *Stats: Count plus min/avg/max per quantity, zero-valued when the
//     user has no readings
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteRepository) StatsByUser(ctx context.Context, userID string) (*Stats, error) {
	var count int
	var avgT, minT, maxT, avgH, minH, maxH sql.NullFloat64

	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        AVG(temperature), MIN(temperature), MAX(temperature),
		        AVG(humidity), MIN(humidity), MAX(humidity)
		 FROM sensor_readings WHERE user_id = ?`, userID,
	).Scan(&count, &avgT, &minT, &maxT, &avgH, &minH, &maxH)
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}

	stats := &Stats{TotalReadings: count}
	if count > 0 {
		stats.Temperature = RangeStats{Average: avgT.Float64, Minimum: minT.Float64, Maximum: maxT.Float64}
		stats.Humidity = RangeStats{Average: avgH.Float64, Minimum: minH.Float64, Maximum: maxH.Float64}
	}
	return stats, nil
}

// DeleteByUser removes all readings belonging to a user.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - userID: Owning user
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM sensor_readings WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("deleting readings: %w", err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}

// clampLimit applies the default and upper bound to a requested limit.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
