// Package sensor stores and aggregates telemetry readings.
//
// Every reading belongs to exactly one user; list, stats and clear
// operations are always scoped to the owning user and no query path
// crosses that partition. Range checks reject out-of-bounds values at
// ingestion rather than clamping them.
//
// Two repository implementations exist: SQLite for the durable variant
// and an in-memory ring that keeps the newest readings per user for the
// ephemeral one. Accepted readings can additionally be mirrored to a
// time-series backend through the ReadingMirror interface.
package sensor
