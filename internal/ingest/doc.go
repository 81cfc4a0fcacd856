// Package ingest bridges MQTT telemetry into the sensor store.
//
// Devices that cannot speak HTTP publish JSON readings to their own
// telemetry topic; the bridge authenticates the embedded session token,
// validates the reading, stores it in the caller's partition, and
// acknowledges on the device's ack topic.
//
// # Message Flow
//
//	Device ─ sensorflow/{device}/telemetry ─▶ Bridge ─▶ auth + sensor services
//	Device ◀─ sensorflow/{device}/ack ──────── Bridge
//
// Token failures are acknowledged with a single undifferentiated
// rejection, matching the HTTP session guard: a device cannot learn
// whether its token is malformed, unknown, expired, or revoked.
//
// The bridge is optional. When MQTT is disabled in config the hub runs
// HTTP-only and this package is never constructed.
package ingest
