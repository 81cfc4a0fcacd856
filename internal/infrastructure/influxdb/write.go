package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// readingMeasurement is the measurement name for mirrored sensor readings.
const readingMeasurement = "sensor_reading"

// WriteSensorReading records one accepted sensor reading.
//
// The write is non-blocking; points are batched and sent asynchronously.
// User and device become tags so dashboards can group and filter by them;
// the climate values are fields.
//
// Parameters:
//   - userID: Owner of the reading (e.g., "usr-1a2b3c4d")
//   - deviceID: Reporting device (e.g., "ESP32_KITCHEN")
//   - temperature: Degrees Celsius
//   - humidity: Relative humidity percent
//   - at: When the reading was recorded; zero means now
//
// Example:
//
//	client.WriteSensorReading("usr-1a2b3c4d", "ESP32_KITCHEN", 21.5, 48.2, reading.RecordedAt)
func (c *Client) WriteSensorReading(userID, deviceID string, temperature, humidity float64, at time.Time) {
	if !c.IsConnected() {
		return
	}

	if at.IsZero() {
		at = time.Now()
	}

	point := write.NewPoint(
		readingMeasurement,
		map[string]string{
			"user_id":   userID,
			"device_id": deviceID,
		},
		map[string]interface{}{
			"temperature": temperature,
			"humidity":    humidity,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// MirrorReading satisfies the sensor service's mirror contract so accepted
// readings flow into InfluxDB without the service importing this package.
func (c *Client) MirrorReading(userID, deviceID string, temperature, humidity float64, at time.Time) {
	c.WriteSensorReading(userID, deviceID, temperature, humidity, at)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("hub_stats",
//	    map[string]string{"host": "hub-01"},
//	    map[string]interface{}{"ingest_per_min": 180.0, "sessions": 12})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
