package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"automateeasy/internal/auth"
	"automateeasy/internal/config"
	"automateeasy/internal/model"
	"automateeasy/internal/pkg/apperr"
	"automateeasy/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type mockUsers struct {
	currentUserFunc func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUsers) CurrentUser(ctx context.Context, id string) (*model.User, error) {
	return m.currentUserFunc(ctx, id)
}

func newTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService(config.SecurityConfig{JWTSecret: "test-secret", JWTIssuer: "automateeasy"})
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	return ts
}

func knownUsers(users ...*model.User) *mockUsers {
	return &mockUsers{currentUserFunc: func(ctx context.Context, id string) (*model.User, error) {
		for _, u := range users {
			if u.ID == id {
				return u, nil
			}
		}
		return nil, apperr.Unauthorized("The user with this token no longer exists.")
	}}
}

func protectedRouter(tokens AccessVerifier, users UserLoader, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{Authenticate(tokens, users, nil)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no user"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": u.ID, "userID": c.GetString("userID")})
	})
	r.GET("/me", handlers...)
	return r
}

func do(r http.Handler, header string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestAuthenticate_Success(t *testing.T) {
	tokens := newTokens(t)
	user := &model.User{ID: "u-1", Email: "a@x.com"}
	r := protectedRouter(tokens, knownUsers(user))

	tok, _ := tokens.IssueAccessToken("u-1", "a@x.com", false)
	w, body := do(r, "Bearer "+tok)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%v", w.Code, body)
	}
	if body["id"] != "u-1" || body["userID"] != "u-1" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestAuthenticate_Rejections(t *testing.T) {
	tokens := newTokens(t)
	user := &model.User{ID: "u-1"}
	r := protectedRouter(tokens, knownUsers(user))

	refresh, _ := tokens.IssueRefreshToken("u-1")
	ghost, _ := tokens.IssueAccessToken("ghost", "g@x.com", false)

	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "automateeasy",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		UserID: "u-1",
		Type:   auth.TokenTypeAccess,
	}).SignedString([]byte("test-secret"))
	other, _ := auth.NewTokenService(config.SecurityConfig{JWTSecret: "other", JWTIssuer: "automateeasy"})
	forged, _ := other.IssueAccessToken("u-1", "a@x.com", true)

	cases := []struct {
		name    string
		header  string
		message string
	}{
		{"missing header", "", msgAuthRequired},
		{"wrong scheme", "Basic abc", msgAuthRequired},
		{"empty bearer", "Bearer ", msgAuthRequired},
		{"garbage", "Bearer not.a.jwt", msgInvalidToken},
		{"expired", "Bearer " + expired, msgInvalidToken},
		{"refresh token", "Bearer " + refresh, msgInvalidToken},
		{"foreign signature", "Bearer " + forged, msgInvalidToken},
		{"unknown user", "Bearer " + ghost, "The user with this token no longer exists."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := do(r, tc.header)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d", w.Code)
			}
			if body["status"] != "error" || body["message"] != tc.message {
				t.Fatalf("unexpected body: %v", body)
			}
		})
	}
}

type expiredVerifier struct{}

func (expiredVerifier) VerifyAccess(string) (*auth.Claims, error) {
	return nil, auth.ErrExpiredToken
}

func TestAuthenticate_ExpiredIsUnauthorized(t *testing.T) {
	r := protectedRouter(expiredVerifier{}, knownUsers())
	w, _ := do(r, "Bearer anything")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expired token should be 401, got %d", w.Code)
	}
}

func TestAuthenticate_StoreFailureIs500(t *testing.T) {
	tokens := newTokens(t)
	users := &mockUsers{currentUserFunc: func(ctx context.Context, id string) (*model.User, error) {
		return nil, apperr.Internal(errors.New("db down"))
	}}
	r := protectedRouter(tokens, users)

	tok, _ := tokens.IssueAccessToken("u-1", "a@x.com", false)
	w, body := do(r, "Bearer "+tok)
	if w.Code != http.StatusInternalServerError || body["message"] != "Something went wrong." {
		t.Fatalf("status = %d body=%v", w.Code, body)
	}
}

func TestRestrictToAdmin(t *testing.T) {
	tokens := newTokens(t)
	admin := &model.User{ID: "admin", IsAdmin: true}
	member := &model.User{ID: "member"}
	r := protectedRouter(tokens, knownUsers(admin, member), RestrictToAdmin())

	adminTok, _ := tokens.IssueAccessToken("admin", "", true)
	memberTok, _ := tokens.IssueAccessToken("member", "", false)

	if w, _ := do(r, "Bearer "+adminTok); w.Code != http.StatusOK {
		t.Fatalf("admin status = %d", w.Code)
	}
	w, body := do(r, "Bearer "+memberTok)
	if w.Code != http.StatusForbidden {
		t.Fatalf("member status = %d", w.Code)
	}
	if body["message"] != "You do not have permission to perform this action." {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestRestrictToAdmin_WithoutAuthenticate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", RestrictToAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}
}

type mockLimiter struct {
	allowFunc func(ctx context.Context, key string) (ratelimit.Decision, error)
}

func (m *mockLimiter) Allow(ctx context.Context, key string) (ratelimit.Decision, error) {
	return m.allowFunc(ctx, key)
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	calls := 0
	limiter := &mockLimiter{allowFunc: func(ctx context.Context, key string) (ratelimit.Decision, error) {
		calls++
		if calls > 2 {
			return ratelimit.Decision{Allowed: false, RetryAfter: 1500 * time.Millisecond}, nil
		}
		return ratelimit.Decision{Allowed: true}, nil
	}}

	r := gin.New()
	r.POST("/login", RateLimit(limiter, nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("Retry-After = %q", got)
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := &mockLimiter{allowFunc: func(ctx context.Context, key string) (ratelimit.Decision, error) {
		return ratelimit.Decision{}, errors.New("redis down")
	}}
	r := gin.New()
	r.POST("/login", RateLimit(limiter, nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRequestLogger_AssignsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(nil))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("requestID")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	id := w.Header().Get("X-Request-ID")
	if id == "" || w.Body.String() != id {
		t.Fatalf("request id header %q body %q", id, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") != "abc" {
		t.Fatalf("incoming request id not propagated")
	}
}
