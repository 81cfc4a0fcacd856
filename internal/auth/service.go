package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Default credential lifetimes, applied when Deps leaves them zero.
const (
	DefaultSessionTTL = 7 * 24 * time.Hour
	DefaultResetTTL   = 10 * time.Minute
)

// Deps bundles the collaborators the auth service needs.
// Users, Sessions, Resets and Sender are required; Logger falls back to
// slog.Default and zero TTLs take the package defaults.
type Deps struct {
	Users    UserRepository
	Sessions SessionRepository
	Resets   ResetRepository
	Sender   CodeSender
	Logger   *slog.Logger

	SessionTTL time.Duration
	ResetTTL   time.Duration
}

// Service implements the authentication flows: registration, login,
// logout, session validation and the password reset cycle. It is safe
// for concurrent use.
//
// Cross-store invariants are held with per-user locks: a password reset
// spans consume code -> update hash -> revoke sessions, and a login
// re-reads the credential under the same lock, so a login racing a reset
// can never issue a session that survives the revoke.
type Service struct {
	users    UserRepository
	sessions SessionRepository
	resets   ResetRepository
	sender   CodeSender
	logger   *slog.Logger

	sessionTTL time.Duration
	resetTTL   time.Duration

	userLocks map[string]*sync.Mutex
	mu        sync.Mutex // guards userLocks
}

// Credentials is the result of a successful registration or login: the
// account plus a freshly issued session token. The raw token appears
// here once and is never recoverable from storage.
type Credentials struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewService creates the auth service after validating dependencies.
func NewService(deps Deps) (*Service, error) {
	if deps.Users == nil {
		return nil, fmt.Errorf("auth service requires a user repository")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("auth service requires a session repository")
	}
	if deps.Resets == nil {
		return nil, fmt.Errorf("auth service requires a reset code repository")
	}
	if deps.Sender == nil {
		return nil, fmt.Errorf("auth service requires a code sender")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sessionTTL := deps.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	resetTTL := deps.ResetTTL
	if resetTTL <= 0 {
		resetTTL = DefaultResetTTL
	}

	return &Service{
		users:      deps.Users,
		sessions:   deps.Sessions,
		resets:     deps.Resets,
		sender:     deps.Sender,
		logger:     logger,
		sessionTTL: sessionTTL,
		resetTTL:   resetTTL,
		userLocks:  make(map[string]*sync.Mutex),
	}, nil
}

// Register creates a new account and immediately issues a session
// (auto-login). Input is normalised before validation: username trimmed,
// email trimmed and lowercased.
func (s *Service) Register(ctx context.Context, username, email, password string) (*Credentials, error) {
	username = NormalizeUsername(username)
	email = NormalizeEmail(email)

	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	creds, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return creds, nil
}

// Login verifies credentials and issues a new session. Prior sessions
// stay valid: multiple concurrent logins are allowed. The password check
// runs under the user's lock against a freshly read hash, so a reset
// completing just before cannot be bypassed with the old password.
func (s *Service) Login(ctx context.Context, username, password string) (*Credentials, error) {
	username = NormalizeUsername(username)

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	unlock := s.lockUser(user.ID)
	defer unlock()

	// Re-read under the lock: the hash may have rotated since the lookup
	user, err = s.users.GetByID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		s.logger.Info("login rejected", "username", username)
		return nil, ErrInvalidCredentials
	}

	now := time.Now().UTC().Truncate(time.Second)
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("recording last login failed", "user_id", user.ID, "error", err)
	} else {
		user.LastLogin = &now
	}

	creds, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", "user_id", user.ID, "username", user.Username)
	return creds, nil
}

// Logout revokes exactly the presented session. Unknown or already
// revoked tokens are not an error: the outcome reveals nothing about
// whether the token ever existed.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	if err := s.sessions.Delete(ctx, HashToken(rawToken)); err != nil {
		return err
	}
	return nil
}

// ValidateSession resolves a raw bearer token to its user. Expired
// sessions are pruned on sight and report ErrTokenExpired; the API layer
// collapses that with ErrTokenInvalid into one undifferentiated response.
func (s *Service) ValidateSession(ctx context.Context, rawToken string) (*User, error) {
	session, err := s.sessions.GetByTokenHash(ctx, HashToken(rawToken))
	if err != nil {
		return nil, err
	}

	if session.Expired() {
		if err := s.sessions.Delete(ctx, session.TokenHash); err != nil {
			s.logger.Warn("pruning expired session failed", "error", err)
		}
		return nil, ErrTokenExpired
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	return user, nil
}

// ForgotPassword issues a reset code for a registered email and hands it
// to the code sender. The caller always gets the same nil outcome whether
// or not the email exists; only internal side effects differ.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.logger.Info("reset requested for unknown email")
			return nil
		}
		return err
	}

	raw, err := GenerateResetCode()
	if err != nil {
		return err
	}

	code := &ResetCode{
		UserID:    user.ID,
		Code:      raw,
		ExpiresAt: time.Now().UTC().Add(s.resetTTL).Truncate(time.Second),
	}
	if err := s.resets.Create(ctx, code); err != nil {
		return err
	}

	if err := s.sender.SendResetCode(ctx, email, raw); err != nil {
		// Swallowed: a delivery failure surfaced to the caller would
		// reveal that the email is registered
		s.logger.Error("reset code delivery failed", "user_id", user.ID, "error", err)
		return nil
	}

	s.logger.Info("reset code issued", "user_id", user.ID, "expires_at", code.ExpiresAt)
	return nil
}

// VerifyResetCode checks a code against the newest valid code for the
// account. Read-only: the code stays consumable afterwards. Any failure
// reads the same to the caller; the distinct sentinels exist for logging.
func (s *Service) VerifyResetCode(ctx context.Context, email, code string) error {
	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrCodeNotFound
		}
		return err
	}

	latest, err := s.resets.GetLatestValid(ctx, user.ID)
	if err != nil {
		return err
	}

	if !codesEqual(code, latest.Code) {
		return ErrCodeMismatch
	}
	return nil
}

// ResetPassword consumes a reset code, replaces the password hash and
// revokes every session the user holds. The whole sequence runs under
// the user's lock, so a concurrent login cannot slip a session past the
// revoke and a code can only ever be consumed once.
//
// Consume checks run in order: code exists, not expired, code matches,
// not already used. The first failing check picks the error.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrCodeNotFound
		}
		return err
	}

	unlock := s.lockUser(user.ID)
	defer unlock()

	latest, err := s.resets.GetLatest(ctx, user.ID)
	if err != nil {
		return err
	}
	if latest.Expired() {
		return ErrCodeExpired
	}
	if !codesEqual(code, latest.Code) {
		return ErrCodeMismatch
	}
	if latest.Used {
		return ErrCodeAlreadyUsed
	}

	if err := s.resets.MarkUsed(ctx, latest.ID); err != nil {
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing new password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	revoked, err := s.sessions.DeleteAllForUser(ctx, user.ID)
	if err != nil {
		return err
	}

	s.logger.Info("password reset completed", "user_id", user.ID, "sessions_revoked", revoked)
	return nil
}

// Cleanup removes expired sessions and reset codes in one sweep.
func (s *Service) Cleanup(ctx context.Context) {
	sessions, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		s.logger.Warn("session cleanup failed", "error", err)
	}
	codes, err := s.resets.DeleteExpired(ctx)
	if err != nil {
		s.logger.Warn("reset code cleanup failed", "error", err)
	}
	if sessions > 0 || codes > 0 {
		s.logger.Info("expired credentials pruned",
			"sessions", sessions,
			"reset_codes", codes,
		)
	}
}

// RunCleanup sweeps expired credentials on the given interval until the
// context is cancelled. Meant to run as a goroutine from main.
func (s *Service) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup(ctx)
		}
	}
}

// issueSession mints a raw token, stores its hash and returns the
// credentials for the caller.
func (s *Service) issueSession(ctx context.Context, user *User) (*Credentials, error) {
	raw, err := GenerateSessionToken()
	if err != nil {
		return nil, err
	}

	session := &Session{
		UserID:    user.ID,
		TokenHash: HashToken(raw),
		ExpiresAt: time.Now().UTC().Add(s.sessionTTL).Truncate(time.Second),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}

	return &Credentials{User: user, Token: raw, ExpiresAt: session.ExpiresAt}, nil
}

// lockUser acquires the mutex for a user ID, creating it on first use,
// and returns the unlock func. Lock granularity is per user; unrelated
// users never contend.
func (s *Service) lockUser(id string) func() {
	s.mu.Lock()
	l, ok := s.userLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// codesEqual compares reset codes in constant time.
func codesEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
