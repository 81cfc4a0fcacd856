package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ResetRepository defines the interface for password reset code
// persistence. The durable variant keeps full history; Create supersedes
// prior unused codes so at most one code per user can ever verify.
type ResetRepository interface {
	Create(ctx context.Context, code *ResetCode) error
	GetLatest(ctx context.Context, userID string) (*ResetCode, error)
	GetLatestValid(ctx context.Context, userID string) (*ResetCode, error)
	MarkUsed(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// SQLiteResetRepository implements ResetRepository using SQLite.
type SQLiteResetRepository struct {
	db *sql.DB
}

// NewResetRepository creates a new SQLite-backed reset code repository.
func NewResetRepository(db *sql.DB) *SQLiteResetRepository {
	return &SQLiteResetRepository{db: db}
}

// Create inserts a new reset code, atomically marking the user's prior
// unused codes as used. A racing consume of an old code and issue of a
// new one cannot both succeed.
func (r *SQLiteResetRepository) Create(ctx context.Context, code *ResetCode) error {
	if code.ID == "" {
		code.ID = "rst-" + uuid.NewString()[:16]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	code.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning reset code transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	// Supersede: prior unused codes stop being authoritative
	if _, err := tx.ExecContext(ctx,
		"UPDATE password_resets SET used = 1 WHERE user_id = ? AND used = 0",
		code.UserID); err != nil {
		return fmt.Errorf("superseding prior codes: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO password_resets (id, user_id, code, created_at, expires_at, used)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		code.ID, code.UserID, code.Code,
		now, code.ExpiresAt.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("creating reset code: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reset code: %w", err)
	}
	return nil
}

// GetLatest returns the most recently created code for a user regardless
// of state. Consume inspects the result to tell expired from mismatched
// from already-used.
func (r *SQLiteResetRepository) GetLatest(ctx context.Context, userID string) (*ResetCode, error) {
	return r.getCode(ctx,
		`SELECT id, user_id, code, created_at, expires_at, used
		 FROM password_resets WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`, userID)
}

// GetLatestValid returns the most recently created unused, unexpired code
// for a user. This is the read-only verification path.
func (r *SQLiteResetRepository) GetLatestValid(ctx context.Context, userID string) (*ResetCode, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	return r.getCode(ctx,
		`SELECT id, user_id, code, created_at, expires_at, used
		 FROM password_resets
		 WHERE user_id = ? AND used = 0 AND expires_at > ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`, userID, now)
}

// MarkUsed consumes a code. The used flag is monotonic: it is never
// cleared once set.
func (r *SQLiteResetRepository) MarkUsed(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE password_resets SET used = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking reset code used: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrCodeNotFound
	}
	return nil
}

// DeleteExpired removes codes past their expiry, freeing storage. Used
// codes stay until they expire so a late retry still reads AlreadyUsed.
// Returns the number of deleted rows.
func (r *SQLiteResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM password_resets WHERE expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired reset codes: %w", err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}

// getCode executes a query and scans a single reset code result.
func (r *SQLiteResetRepository) getCode(ctx context.Context, query string, args ...any) (*ResetCode, error) {
	var c ResetCode
	var used int
	var createdAt, expiresAt string

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&c.ID, &c.UserID, &c.Code, &createdAt, &expiresAt, &used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("scanning reset code: %w", err)
	}

	c.Used = used != 0
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	c.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt) //nolint:errcheck // format is controlled

	return &c, nil
}
