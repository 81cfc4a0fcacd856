package auth

import (
	"errors"
	"strings"
	"time"
)

// Validation limits for registration input.
const (
	// minUsernameLength is the minimum username length after trimming.
	minUsernameLength = 3

	// minPasswordLength is the minimum password length.
	minPasswordLength = 6
)

// NormalizeUsername trims surrounding whitespace. Usernames are compared
// and stored in trimmed form.
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

// NormalizeEmail lowercases and trims an email address so "A@X.COM" and
// "a@x.com" refer to the same account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateUsername checks a normalised username against registration rules.
func ValidateUsername(username string) error {
	if len(username) < minUsernameLength {
		return ErrUsernameTooShort
	}
	return nil
}

// ValidatePassword checks a password against the minimum length rule.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// ValidateEmail checks a normalised email for minimal structural sanity:
// non-empty local part, a single "@", domain containing a dot.
// Deliverability is proven by the reset-code flow, not by parsing.
func ValidateEmail(email string) error {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return ErrEmailInvalid
	}
	domain := email[at+1:]
	if strings.IndexByte(domain, '.') <= 0 || strings.Contains(domain, "@") {
		return ErrEmailInvalid
	}
	return nil
}

// User represents a registered account. Sensor readings are partitioned
// by user: every reading belongs to exactly one user and no query path
// crosses that line.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // never serialised
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// Session represents a stored bearer session. Only the SHA-256 digest of
// the token is persisted; the raw token is shown to the client once.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"` // never serialised
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired returns true if the session's expiry time has passed.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// ResetCode represents a one-time 6-digit password reset credential.
// Issuing a new code supersedes prior unused codes for the same user:
// only the most recently created code is authoritative.
type ResetCode struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Code      string    `json:"-"` // delivered out of band, never serialised
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
}

// Expired returns true if the code's expiry time has passed.
func (c *ResetCode) Expired() bool {
	return time.Now().After(c.ExpiresAt)
}

// Sentinel errors for auth operations. The session guard collapses
// ErrTokenExpired and ErrTokenInvalid into one response so callers cannot
// probe token existence; the reset-flow errors stay differentiated
// internally for logging.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameExists     = errors.New("username already exists")
	ErrEmailExists        = errors.New("email already exists")
	ErrUsernameTooShort   = errors.New("username too short")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrEmailInvalid       = errors.New("invalid email address")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrCodeNotFound       = errors.New("no reset code issued")
	ErrCodeExpired        = errors.New("reset code has expired")
	ErrCodeMismatch       = errors.New("reset code mismatch")
	ErrCodeAlreadyUsed    = errors.New("reset code already used")
)
