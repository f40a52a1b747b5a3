package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"automateeasy/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

func testSecurity() config.SecurityConfig {
	return config.SecurityConfig{
		JWTSecret:       "test-secret",
		JWTIssuer:       "automateeasy",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}
}

func newTestTokens(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testSecurity())
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	return ts
}

func TestNewTokenService_RequiresSecret(t *testing.T) {
	if _, err := NewTokenService(config.SecurityConfig{}); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestTokenService_AccessRoundTrip(t *testing.T) {
	ts := newTestTokens(t)

	tok, err := ts.IssueAccessToken("user-1", "a@x.com", true)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := ts.VerifyAccess(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "a@x.com" || !claims.IsAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Sub(claims.IssuedAt.Time) != 15*time.Minute {
		t.Fatalf("unexpected expiry: %+v", claims.ExpiresAt)
	}
	if ts.AccessTTL() != 15*time.Minute {
		t.Fatalf("access ttl = %s", ts.AccessTTL())
	}
}

func TestTokenService_RefreshCarriesOnlyUserID(t *testing.T) {
	ts := newTestTokens(t)

	tok, err := ts.IssueRefreshToken("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := ts.VerifyRefresh(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "" || claims.IsAdmin {
		t.Fatalf("refresh token leaked identity: %+v", claims)
	}
}

func TestTokenService_TypeConfusionRejected(t *testing.T) {
	ts := newTestTokens(t)

	access, _ := ts.IssueAccessToken("user-1", "a@x.com", false)
	refresh, _ := ts.IssueRefreshToken("user-1")

	if _, err := ts.VerifyRefresh(access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token accepted as refresh: %v", err)
	}
	if _, err := ts.VerifyAccess(refresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token accepted as access: %v", err)
	}
}

func TestTokenService_Expired(t *testing.T) {
	ts := newTestTokens(t)
	ts.now = func() time.Time { return time.Now().Add(-time.Hour) }
	tok, _ := ts.IssueAccessToken("user-1", "a@x.com", false)

	ts.now = time.Now
	if _, err := ts.Verify(tok); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestTokenService_Tampered(t *testing.T) {
	ts := newTestTokens(t)
	tok, _ := ts.IssueAccessToken("user-1", "a@x.com", false)

	parts := strings.Split(tok, ".")
	parts[2] = strings.Repeat("A", len(parts[2]))
	if _, err := ts.Verify(strings.Join(parts, ".")); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := ts.Verify("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestTokenService_WrongSecret(t *testing.T) {
	ts := newTestTokens(t)
	other := testSecurity()
	other.JWTSecret = "other-secret"
	ots, _ := NewTokenService(other)

	tok, _ := ots.IssueAccessToken("user-1", "a@x.com", false)
	if _, err := ts.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenService_RejectsOtherAlgorithms(t *testing.T) {
	ts := newTestTokens(t)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "automateeasy",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: "user-1",
		Type:   TokenTypeAccess,
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := ts.Verify(none); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("alg none accepted: %v", err)
	}

	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	if _, err := ts.Verify(hs512); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("HS512 accepted: %v", err)
	}
}

func TestTokenService_RequiresExpiryAndUser(t *testing.T) {
	ts := newTestTokens(t)

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "automateeasy"},
		UserID:           "user-1",
		Type:             TokenTypeAccess,
	}).SignedString([]byte("test-secret"))
	if _, err := ts.Verify(noExp); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token without exp accepted: %v", err)
	}

	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "automateeasy",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Type: TokenTypeAccess,
	}).SignedString([]byte("test-secret"))
	if _, err := ts.Verify(noUser); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token without user accepted: %v", err)
	}
}

func TestTokenService_WrongIssuer(t *testing.T) {
	ts := newTestTokens(t)
	cfg := testSecurity()
	cfg.JWTIssuer = "someone-else"
	other, _ := NewTokenService(cfg)

	tok, _ := other.IssueAccessToken("user-1", "a@x.com", false)
	if _, err := ts.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign issuer accepted: %v", err)
	}
}
