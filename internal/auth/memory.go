package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// In-memory repository variants. They satisfy the same interfaces as the
// SQLite implementations and hold everything under a per-store mutex, so
// the service layer behaves identically against either backend. State is
// lost on restart; intended for development and tests.

// MemoryUserRepository implements UserRepository with mutex-guarded maps.
type MemoryUserRepository struct {
	users      map[string]User   // keyed by user ID
	byUsername map[string]string // username -> user ID
	byEmail    map[string]string // email -> user ID
	mu         sync.RWMutex
}

// NewMemoryUserRepository creates an empty in-memory user repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:      make(map[string]User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

// Create inserts a new user account. The uniqueness check and insert run
// under one lock, so concurrent duplicate registrations resolve to
// exactly one success.
func (r *MemoryUserRepository) Create(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byUsername[user.Username]; taken {
		return ErrUsernameExists
	}
	if _, taken := r.byEmail[user.Email]; taken {
		return ErrEmailExists
	}

	if user.ID == "" {
		user.ID = "usr-" + uuid.NewString()[:8]
	}
	user.CreatedAt = time.Now().UTC().Truncate(time.Second)

	r.users[user.ID] = *user
	r.byUsername[user.Username] = user.ID
	r.byEmail[user.Email] = user.ID
	return nil
}

// GetByID retrieves a user by their unique ID.
func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// GetByUsername retrieves a user by their trimmed username.
func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := r.users[id]
	return &u, nil
}

// GetByEmail retrieves a user by their normalised email.
func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := r.users[id]
	return &u, nil
}

// UpdatePassword changes a user's password hash.
func (r *MemoryUserRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	r.users[id] = u
	return nil
}

// TouchLastLogin records the time of a successful login.
func (r *MemoryUserRepository) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	t := at.UTC().Truncate(time.Second)
	u.LastLogin = &t
	r.users[id] = u
	return nil
}

// MemorySessionRepository implements SessionRepository with a
// mutex-guarded map keyed by token hash.
type MemorySessionRepository struct {
	sessions map[string]Session // keyed by token hash
	mu       sync.RWMutex
}

// NewMemorySessionRepository creates an empty in-memory session repository.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]Session)}
}

// Create inserts a new session. The ID is generated if empty.
func (r *MemorySessionRepository) Create(_ context.Context, session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session.ID == "" {
		session.ID = "ses-" + uuid.NewString()[:16]
	}
	session.CreatedAt = time.Now().UTC().Truncate(time.Second)

	r.sessions[session.TokenHash] = *session
	return nil
}

// GetByTokenHash retrieves a session by its SHA-256 token hash.
func (r *MemorySessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[tokenHash]
	if !ok {
		return nil, ErrTokenInvalid
	}
	return &s, nil
}

// Delete removes the session with the given token hash, if present.
func (r *MemorySessionRepository) Delete(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, tokenHash)
	return nil
}

// DeleteAllForUser removes every session belonging to a user.
func (r *MemorySessionRepository) DeleteAllForUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for hash, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, hash)
			count++
		}
	}
	return count, nil
}

// DeleteExpired removes sessions past their expiry.
func (r *MemorySessionRepository) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var count int64
	for hash, s := range r.sessions {
		if now.After(s.ExpiresAt) {
			delete(r.sessions, hash)
			count++
		}
	}
	return count, nil
}

// MemoryResetRepository implements ResetRepository keeping only the
// newest code per user: issuing a new code overwrites the prior entry,
// which is the overwrite form of the supersede policy.
type MemoryResetRepository struct {
	codes map[string]ResetCode // keyed by user ID, newest code only
	mu    sync.RWMutex
}

// NewMemoryResetRepository creates an empty in-memory reset repository.
func NewMemoryResetRepository() *MemoryResetRepository {
	return &MemoryResetRepository{codes: make(map[string]ResetCode)}
}

// Create stores a new reset code, replacing any prior code for the user.
func (r *MemoryResetRepository) Create(_ context.Context, code *ResetCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if code.ID == "" {
		code.ID = "rst-" + uuid.NewString()[:16]
	}
	code.CreatedAt = time.Now().UTC().Truncate(time.Second)

	r.codes[code.UserID] = *code
	return nil
}

// GetLatest returns the user's current code regardless of state.
func (r *MemoryResetRepository) GetLatest(_ context.Context, userID string) (*ResetCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.codes[userID]
	if !ok {
		return nil, ErrCodeNotFound
	}
	return &c, nil
}

// GetLatestValid returns the user's current code if it is unused and
// unexpired.
func (r *MemoryResetRepository) GetLatestValid(_ context.Context, userID string) (*ResetCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.codes[userID]
	if !ok || c.Used || c.Expired() {
		return nil, ErrCodeNotFound
	}
	return &c, nil
}

// MarkUsed consumes the code with the given ID.
func (r *MemoryResetRepository) MarkUsed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, c := range r.codes {
		if c.ID == id {
			c.Used = true
			r.codes[userID] = c
			return nil
		}
	}
	return ErrCodeNotFound
}

// DeleteExpired removes codes past their expiry.
func (r *MemoryResetRepository) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for userID, c := range r.codes {
		if c.Expired() {
			delete(r.codes, userID)
			count++
		}
	}
	return count, nil
}
