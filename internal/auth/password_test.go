package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("Secret123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "Secret123" || !strings.HasPrefix(hash, "$2") {
		t.Fatalf("unexpected hash %q", hash)
	}
	if !h.Verify("Secret123", hash) {
		t.Fatalf("expected password to verify")
	}
	if h.Verify("secret123", hash) {
		t.Fatalf("wrong password verified")
	}
}

func TestBcryptHasher_SaltsEachHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	a, _ := h.Hash("same")
	b, _ := h.Hash("same")
	if a == b {
		t.Fatalf("expected distinct salts")
	}
}

func TestBcryptHasher_CostClamped(t *testing.T) {
	if got := NewBcryptHasher(1).Cost(); got != bcrypt.MinCost {
		t.Fatalf("cost = %d, want %d", got, bcrypt.MinCost)
	}
	if got := NewBcryptHasher(99).Cost(); got != bcrypt.MaxCost {
		t.Fatalf("cost = %d, want %d", got, bcrypt.MaxCost)
	}
	if got := NewBcryptHasher(12).Cost(); got != 12 {
		t.Fatalf("cost = %d, want 12", got)
	}
}

func TestBcryptHasher_TooLong(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	if _, err := h.Hash(strings.Repeat("a", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestBcryptHasher_MalformedHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	if h.Verify("anything", "not-a-bcrypt-hash") {
		t.Fatalf("malformed hash must not verify")
	}
}

func TestGenerateToken(t *testing.T) {
	a, err := generateToken(tokenBytes)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(a) != tokenBytes*2 {
		t.Fatalf("token length = %d, want %d", len(a), tokenBytes*2)
	}
	b, _ := generateToken(tokenBytes)
	if a == b {
		t.Fatalf("tokens should differ")
	}
	if _, err := generateToken(0); err == nil {
		t.Fatalf("expected error for zero length")
	}
}
