package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResetRepository_CreateAndGetLatest(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "forgetful", "f@x.com")
	repo := NewResetRepository(db)
	ctx := context.Background()

	code := &ResetCode{
		UserID:    user.ID,
		Code:      "123456",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	if err := repo.Create(ctx, code); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if code.ID == "" {
		t.Fatal("Create() should generate an ID")
	}

	got, err := repo.GetLatest(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetLatest() error = %v", err)
	}
	if got.Code != "123456" {
		t.Errorf("Code = %q, want %q", got.Code, "123456")
	}
	if got.Used {
		t.Error("fresh code should not be used")
	}

	valid, err := repo.GetLatestValid(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetLatestValid() error = %v", err)
	}
	if valid.ID != code.ID {
		t.Errorf("GetLatestValid() ID = %q, want %q", valid.ID, code.ID)
	}
}

func TestResetRepository_NoCode(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "nocode", "n@x.com")
	repo := NewResetRepository(db)
	ctx := context.Background()

	if _, err := repo.GetLatest(ctx, user.ID); !errors.Is(err, ErrCodeNotFound) {
		t.Errorf("GetLatest() error = %v, want ErrCodeNotFound", err)
	}
	if _, err := repo.GetLatestValid(ctx, user.ID); !errors.Is(err, ErrCodeNotFound) {
		t.Errorf("GetLatestValid() error = %v, want ErrCodeNotFound", err)
	}
}

func TestResetRepository_CreateSupersedesPrior(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "repeat", "r@x.com")
	repo := NewResetRepository(db)
	ctx := context.Background()

	first := &ResetCode{UserID: user.ID, Code: "111111", ExpiresAt: time.Now().Add(10 * time.Minute)}
	repo.Create(ctx, first) //nolint:errcheck // test setup

	second := &ResetCode{UserID: user.ID, Code: "222222", ExpiresAt: time.Now().Add(10 * time.Minute)}
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// The first code is no longer authoritative
	old, err := repo.getCode(ctx,
		"SELECT id, user_id, code, created_at, expires_at, used FROM password_resets WHERE id = ?",
		first.ID)
	if err != nil {
		t.Fatalf("reading superseded code: %v", err)
	}
	if !old.Used {
		t.Error("prior code should be marked used when a new one is issued")
	}

	valid, err := repo.GetLatestValid(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetLatestValid() error = %v", err)
	}
	if valid.Code != "222222" {
		t.Errorf("authoritative code = %q, want %q", valid.Code, "222222")
	}
}

func TestResetRepository_MarkUsed(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "consumer", "co@x.com")
	repo := NewResetRepository(db)
	ctx := context.Background()

	code := &ResetCode{UserID: user.ID, Code: "654321", ExpiresAt: time.Now().Add(10 * time.Minute)}
	repo.Create(ctx, code) //nolint:errcheck // test setup

	if err := repo.MarkUsed(ctx, code.ID); err != nil {
		t.Fatalf("MarkUsed() error = %v", err)
	}

	got, _ := repo.GetLatest(ctx, user.ID)
	if !got.Used {
		t.Error("code should be used after MarkUsed()")
	}
	if _, err := repo.GetLatestValid(ctx, user.ID); !errors.Is(err, ErrCodeNotFound) {
		t.Errorf("used code should not be valid, got error %v", err)
	}

	if err := repo.MarkUsed(ctx, "rst-missing"); !errors.Is(err, ErrCodeNotFound) {
		t.Errorf("MarkUsed() on missing code error = %v, want ErrCodeNotFound", err)
	}
}

func TestResetRepository_ExpiredNotValid(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "tardy", "ta@x.com")
	repo := NewResetRepository(db)
	ctx := context.Background()

	code := &ResetCode{UserID: user.ID, Code: "999999", ExpiresAt: time.Now().Add(-time.Minute)}
	repo.Create(ctx, code) //nolint:errcheck // test setup

	// Still visible as latest, but never as valid
	if _, err := repo.GetLatest(ctx, user.ID); err != nil {
		t.Errorf("GetLatest() error = %v", err)
	}
	if _, err := repo.GetLatestValid(ctx, user.ID); !errors.Is(err, ErrCodeNotFound) {
		t.Errorf("expired code should not be valid, got error %v", err)
	}
}

func TestResetRepository_DeleteExpired(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "sweeper", "sw@x.com")
	other := seedTestUser(t, db, "keeper", "k@x.com")
	repo := NewResetRepository(db)
	ctx := context.Background()

	expired := &ResetCode{UserID: user.ID, Code: "000111", ExpiresAt: time.Now().Add(-time.Minute)}
	repo.Create(ctx, expired) //nolint:errcheck // test setup

	active := &ResetCode{UserID: other.ID, Code: "222333", ExpiresAt: time.Now().Add(10 * time.Minute)}
	repo.Create(ctx, active) //nolint:errcheck // test setup

	count, err := repo.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if count != 1 {
		t.Errorf("DeleteExpired() deleted %d, want 1", count)
	}

	if _, err := repo.GetLatest(ctx, user.ID); !errors.Is(err, ErrCodeNotFound) {
		t.Errorf("expired code should be deleted, got error %v", err)
	}
	if _, err := repo.GetLatest(ctx, other.ID); err != nil {
		t.Errorf("active code should survive, got error %v", err)
	}
}
