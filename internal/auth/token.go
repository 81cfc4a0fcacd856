package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// sessionTokenBytes is the entropy of a raw session token (256-bit).
const sessionTokenBytes = 32

// resetCodeSpace is the size of the reset code space: codes are uniform
// over [100000, 999999], never with a leading zero.
const resetCodeSpace = 900000

// GenerateSessionToken creates a cryptographically random opaque bearer
// token. The raw hex string is returned to the client exactly once; only
// its hash is stored.
func GenerateSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken computes the SHA-256 hash of a raw token string for storage.
// Raw tokens are never stored, only their hashes.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// GenerateResetCode creates a 6-digit numeric reset code, uniformly
// distributed over [100000, 999999]. The lower bound keeps the first
// digit non-zero for fixed-width display; the security property is the
// 900,000-value space combined with the short code expiry.
func GenerateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(resetCodeSpace))
	if err != nil {
		return "", fmt.Errorf("generating reset code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil //nolint:mnd // shift into the 6-digit range
}
