// Package api implements the HTTP REST API for SensorFlow Hub.
//
// This package provides:
//   - Auth endpoints: register, login, logout, password-reset flow, profile
//   - Sensor endpoints: ingest, list, stats, clear (all session-guarded)
//   - Service info card and health endpoint
//   - Middleware stack (request ID, logging, recovery, CORS, body limit,
//     session guard)
//   - TLS support for production deployments
//
// # Security
//
// Protected routes require exactly "Authorization: Bearer <token>" where
// the token is an opaque session token validated against the session
// store on every request. Missing, malformed, unknown and expired tokens
// all produce the same 401 body, so the response never reveals whether a
// token once existed.
//
// # Error envelope
//
// Every non-2xx response is a JSON Error{status, code, message} with a
// stable machine-readable code. Domain errors are translated at this
// boundary; internal details never reach the client.
package api
