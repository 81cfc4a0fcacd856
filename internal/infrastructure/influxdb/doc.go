// Package influxdb provides InfluxDB connectivity for the SensorFlow hub.
//
// It wraps the official influxdb-client-go v2 library with SensorFlow-specific
// patterns for connection management, reading export, and health monitoring.
//
// # Purpose
//
// This package mirrors accepted sensor readings into a time-series store
// for long-retention dashboards. SQLite (or the in-memory store) remains
// the source of truth for the API; InfluxDB is a best-effort copy.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "sensorflow",
//	    Bucket: "readings",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Mirror an accepted reading
//	client.WriteSensorReading("usr-1a2b3c4d", "ESP32_KITCHEN", 21.5, 48.2, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config settings (batch_size, flush_interval).
// This reduces network overhead for high-frequency telemetry data.
package influxdb
