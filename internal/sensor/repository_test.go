package sensor

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupReadingTestDB creates an in-memory SQLite database with the
// sensor_readings table.
func setupReadingTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE sensor_readings (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			device_id TEXT NOT NULL,
			temperature REAL NOT NULL,
			humidity REAL NOT NULL,
			recorded_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE INDEX idx_sensor_readings_user_time ON sensor_readings(user_id, recorded_at);
		CREATE INDEX idx_sensor_readings_user_device ON sensor_readings(user_id, device_id);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// insertReading stores a reading with an explicit timestamp.
func insertReading(t *testing.T, repo Repository, userID, deviceID string, temperature, humidity float64, at time.Time) *Reading {
	t.Helper()

	rd := &Reading{
		UserID:      userID,
		DeviceID:    deviceID,
		Temperature: temperature,
		Humidity:    humidity,
		RecordedAt:  at,
	}
	if err := repo.Insert(t.Context(), rd); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	return rd
}

func TestSQLiteRepository_InsertAndList(t *testing.T) {
	repo := NewSQLiteRepository(setupReadingTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	insertReading(t, repo, "usr-1", "ESP32_GARDEN", 21.5, 55, base)
	insertReading(t, repo, "usr-1", "ESP32_GARAGE", 18.0, 70, base.Add(time.Minute))
	newest := insertReading(t, repo, "usr-1", "ESP32_GARDEN", 22.0, 54, base.Add(2*time.Minute))

	if newest.ID == "" {
		t.Fatal("Insert() should generate an ID")
	}

	all, err := repo.ListByUser(ctx, "usr-1", ListOptions{})
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("readings length = %d, want 3", len(all))
	}
	if all[0].ID != newest.ID {
		t.Errorf("first reading = %q, want newest %q", all[0].ID, newest.ID)
	}

	garden, err := repo.ListByUser(ctx, "usr-1", ListOptions{DeviceID: "ESP32_GARDEN"})
	if err != nil {
		t.Fatalf("ListByUser() with device filter error = %v", err)
	}
	if len(garden) != 2 {
		t.Errorf("garden readings = %d, want 2", len(garden))
	}
	for _, rd := range garden {
		if rd.DeviceID != "ESP32_GARDEN" {
			t.Errorf("filtered list yielded device %q", rd.DeviceID)
		}
	}
}

func TestSQLiteRepository_ListScopedToUser(t *testing.T) {
	repo := NewSQLiteRepository(setupReadingTestDB(t))
	ctx := context.Background()

	now := time.Now().UTC()
	insertReading(t, repo, "usr-alice", "ESP32_DEFAULT", 20, 50, now)
	insertReading(t, repo, "usr-bob", "ESP32_DEFAULT", 30, 60, now)

	alice, err := repo.ListByUser(ctx, "usr-alice", ListOptions{})
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(alice) != 1 {
		t.Fatalf("alice readings = %d, want 1", len(alice))
	}
	if alice[0].Temperature != 20 {
		t.Errorf("leaked another user's reading: %+v", alice[0])
	}
}

func TestSQLiteRepository_ListLimit(t *testing.T) {
	repo := NewSQLiteRepository(setupReadingTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	for i := range 5 {
		insertReading(t, repo, "usr-1", "ESP32_DEFAULT", 20, 50, base.Add(time.Duration(i)*time.Second))
	}

	limited, err := repo.ListByUser(ctx, "usr-1", ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("readings = %d, want 2", len(limited))
	}
}

func TestSQLiteRepository_ListEmpty(t *testing.T) {
	repo := NewSQLiteRepository(setupReadingTestDB(t))

	readings, err := repo.ListByUser(context.Background(), "usr-none", ListOptions{})
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if readings == nil {
		t.Error("ListByUser() should return an empty slice, not nil")
	}
	if len(readings) != 0 {
		t.Errorf("readings = %d, want 0", len(readings))
	}
}

func TestSQLiteRepository_Stats(t *testing.T) {
	repo := NewSQLiteRepository(setupReadingTestDB(t))
	ctx := context.Background()

	now := time.Now().UTC()
	insertReading(t, repo, "usr-1", "ESP32_DEFAULT", 20, 40, now)
	insertReading(t, repo, "usr-1", "ESP32_DEFAULT", 30, 60, now)

	stats, err := repo.StatsByUser(ctx, "usr-1")
	if err != nil {
		t.Fatalf("StatsByUser() error = %v", err)
	}
	if stats.TotalReadings != 2 {
		t.Errorf("TotalReadings = %d, want 2", stats.TotalReadings)
	}
	if stats.Temperature.Average != 25 || stats.Temperature.Minimum != 20 || stats.Temperature.Maximum != 30 {
		t.Errorf("temperature stats = %+v, want avg 25 min 20 max 30", stats.Temperature)
	}
	if stats.Humidity.Average != 50 || stats.Humidity.Minimum != 40 || stats.Humidity.Maximum != 60 {
		t.Errorf("humidity stats = %+v, want avg 50 min 40 max 60", stats.Humidity)
	}
}

func TestSQLiteRepository_StatsEmpty(t *testing.T) {
	repo := NewSQLiteRepository(setupReadingTestDB(t))

	stats, err := repo.StatsByUser(context.Background(), "usr-none")
	if err != nil {
		t.Fatalf("StatsByUser() error = %v", err)
	}
	if stats.TotalReadings != 0 {
		t.Errorf("TotalReadings = %d, want 0", stats.TotalReadings)
	}
	if stats.Temperature != (RangeStats{}) || stats.Humidity != (RangeStats{}) {
		t.Errorf("empty stats should be zero-valued, got %+v", stats)
	}
}

func TestSQLiteRepository_DeleteByUser(t *testing.T) {
	repo := NewSQLiteRepository(setupReadingTestDB(t))
	ctx := context.Background()

	now := time.Now().UTC()
	insertReading(t, repo, "usr-clear", "ESP32_DEFAULT", 20, 50, now)
	insertReading(t, repo, "usr-clear", "ESP32_DEFAULT", 21, 51, now)
	insertReading(t, repo, "usr-keep", "ESP32_DEFAULT", 22, 52, now)

	count, err := repo.DeleteByUser(ctx, "usr-clear")
	if err != nil {
		t.Fatalf("DeleteByUser() error = %v", err)
	}
	if count != 2 {
		t.Errorf("deleted %d, want 2", count)
	}

	kept, _ := repo.ListByUser(ctx, "usr-keep", ListOptions{})
	if len(kept) != 1 {
		t.Errorf("other user's readings = %d, want 1", len(kept))
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, DefaultListLimit},
		{-5, DefaultListLimit},
		{1, 1},
		{MaxListLimit, MaxListLimit},
		{MaxListLimit + 1, MaxListLimit},
	}

	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
