package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"automateeasy/internal/model"
	"automateeasy/internal/store"
	"automateeasy/internal/store/storetest"
)

func newUser(email string) *model.User {
	token := "verify-" + email
	return &model.User{
		Email:              email,
		PasswordHash:       "$2a$04$placeholderhashplaceholderhashplaceholderhashpl",
		VerificationStatus: model.VerificationPending,
		VerificationToken:  &token,
	}
}

func TestUserStore_CreateAndFind(t *testing.T) {
	s := storetest.NewUserStore(t)
	ctx := context.Background()

	u := newUser("Alice@Example.com")
	if err := s.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID == "" {
		t.Fatalf("expected generated id")
	}

	got, err := s.FindByEmail(ctx, "  ALICE@example.COM ")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if got.ID != u.ID || got.Email != "alice@example.com" {
		t.Fatalf("unexpected user: %+v", got)
	}
	if got.Timezone != "UTC" || got.SubscriptionStatus != "inactive" {
		t.Fatalf("defaults not applied: %+v", got)
	}

	byID, err := s.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if byID.Email != got.Email {
		t.Fatalf("mismatched email %q", byID.Email)
	}

	if _, err := s.FindByID(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserStore_CreateDuplicateEmail(t *testing.T) {
	s := storetest.NewUserStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, newUser("dup@example.com")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := s.Create(ctx, newUser("DUP@example.com"))
	if !errors.Is(err, store.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if n := storetest.CountUsers(t, s); n != 1 {
		t.Fatalf("expected exactly one user, got %d", n)
	}
}

func TestUserStore_CreateRequiresHash(t *testing.T) {
	s := storetest.NewUserStore(t)
	if err := s.Create(context.Background(), &model.User{Email: "x@example.com"}); err == nil {
		t.Fatalf("expected error without password hash")
	}
}

func TestUserStore_ConsumeVerificationToken(t *testing.T) {
	s := storetest.NewUserStore(t)
	ctx := context.Background()

	u := newUser("verify@example.com")
	if err := s.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}

	verified, err := s.ConsumeVerificationToken(ctx, *u.VerificationToken)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !verified.IsVerified() || verified.VerificationToken != nil {
		t.Fatalf("unexpected state: %+v", verified)
	}

	stored, _ := s.FindByID(ctx, u.ID)
	if !stored.IsVerified() || stored.VerificationToken != nil {
		t.Fatalf("state not persisted: %+v", stored)
	}

	if _, err := s.ConsumeVerificationToken(ctx, *u.VerificationToken); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second consume should fail, got %v", err)
	}
	if _, err := s.ConsumeVerificationToken(ctx, ""); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("empty token should fail, got %v", err)
	}
}

func TestUserStore_ResetPassword(t *testing.T) {
	s := storetest.NewUserStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	u := newUser("reset@example.com")
	if err := s.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SetResetToken(ctx, u.ID, "reset-token", now.Add(time.Hour)); err != nil {
		t.Fatalf("set reset token: %v", err)
	}

	if _, err := s.ResetPassword(ctx, "wrong-token", "newhash", now); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("wrong token should fail, got %v", err)
	}

	updated, err := s.ResetPassword(ctx, "reset-token", "newhash", now)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if updated.ID != u.ID {
		t.Fatalf("reset returned wrong user")
	}

	stored, _ := s.FindByID(ctx, u.ID)
	if stored.PasswordHash != "newhash" {
		t.Fatalf("password hash not updated")
	}
	if stored.ResetPasswordToken != nil || stored.ResetTokenExpiresAt != nil {
		t.Fatalf("reset fields not cleared: %+v", stored)
	}

	if _, err := s.ResetPassword(ctx, "reset-token", "again", now); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("reused token should fail, got %v", err)
	}
}

func TestUserStore_ResetPasswordExpired(t *testing.T) {
	s := storetest.NewUserStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	u := newUser("expired@example.com")
	if err := s.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SetResetToken(ctx, u.ID, "old-token", now.Add(-time.Minute)); err != nil {
		t.Fatalf("set reset token: %v", err)
	}

	if _, err := s.ResetPassword(ctx, "old-token", "newhash", now); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expired token should fail, got %v", err)
	}
	stored, _ := s.FindByID(ctx, u.ID)
	if stored.PasswordHash == "newhash" {
		t.Fatalf("password must not change on expired token")
	}
}

func TestUserStore_ResetPasswordConcurrentSingleWinner(t *testing.T) {
	s := storetest.NewUserStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	u := newUser("race@example.com")
	if err := s.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SetResetToken(ctx, u.ID, "race-token", now.Add(time.Hour)); err != nil {
		t.Fatalf("set reset token: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ResetPassword(ctx, "race-token", "hash", now); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one successful reset, got %d", wins)
	}
}

func TestUserStore_TouchLastLogin(t *testing.T) {
	s := storetest.NewUserStore(t)
	ctx := context.Background()

	u := newUser("login@example.com")
	if err := s.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	at := time.Now().UTC().Truncate(time.Second)
	if err := s.TouchLastLogin(ctx, u.ID, at); err != nil {
		t.Fatalf("touch: %v", err)
	}
	stored, _ := s.FindByID(ctx, u.ID)
	if stored.LastLoginAt == nil || !stored.LastLoginAt.Equal(at) {
		t.Fatalf("last login = %v, want %v", stored.LastLoginAt, at)
	}

	if err := s.TouchLastLogin(ctx, "missing", at); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
