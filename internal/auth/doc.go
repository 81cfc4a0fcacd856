// Package auth provides account and session management for SensorFlow Hub.
//
// It implements opaque bearer-token authentication with:
//   - Argon2id password hashing (OWASP 2025 recommendation)
//   - 256-bit random session tokens, stored as SHA-256 digests and
//     validated against the store on every request, so revocation takes
//     effect immediately
//   - 6-digit one-time password reset codes with a 10-minute expiry;
//     issuing a new code supersedes prior unused ones
//   - Interchangeable SQLite and in-memory repositories behind shared
//     interfaces
//
// Enumeration resistance is a hard rule: forgot-password acknowledges
// unknown emails identically to known ones, logout never reports whether
// the token existed, and the session guard's rejection does not separate
// expired from unknown tokens.
package auth
