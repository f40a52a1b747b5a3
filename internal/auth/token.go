package auth

import (
	"errors"
	"fmt"
	"time"

	"automateeasy/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrExpiredToken = errors.New("token expired")
	ErrInvalidToken = errors.New("invalid token")
)

// TokenType 区分访问令牌与刷新令牌。
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims 两种令牌共用的载荷，刷新令牌只携带 UserID。
type Claims struct {
	jwt.RegisteredClaims
	UserID  string    `json:"userId"`
	Email   string    `json:"email,omitempty"`
	IsAdmin bool      `json:"isAdmin,omitempty"`
	Type    TokenType `json:"typ"`
}

// TokenService 使用进程级密钥签发与校验 HS256 令牌，不保存任何用户状态。
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenService 在启动时创建。
func NewTokenService(cfg config.SecurityConfig) (*TokenService, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &TokenService{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.JWTIssuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// AccessTTL 即返回给客户端的 expiresIn。
func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

// IssueAccessToken 签发携带身份与管理员标记的访问令牌。
func (s *TokenService) IssueAccessToken(userID, email string, isAdmin bool) (string, error) {
	return s.sign(Claims{
		RegisteredClaims: s.registered(userID, s.accessTTL),
		UserID:           userID,
		Email:            email,
		IsAdmin:          isAdmin,
		Type:             TokenTypeAccess,
	})
}

// IssueRefreshToken 签发只含用户 ID 的刷新令牌。
func (s *TokenService) IssueRefreshToken(userID string) (string, error) {
	return s.sign(Claims{
		RegisteredClaims: s.registered(userID, s.refreshTTL),
		UserID:           userID,
		Type:             TokenTypeRefresh,
	})
}

// Verify 校验签名、算法、签发者与过期时间，只返回 ErrExpiredToken 或 ErrInvalidToken。
func (s *TokenService) Verify(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyAccess 拒绝被当作 Bearer 凭证使用的刷新令牌。
func (s *TokenService) VerifyAccess(tokenStr string) (*Claims, error) {
	return s.verifyType(tokenStr, TokenTypeAccess)
}

// VerifyRefresh 拒绝提交到刷新接口的访问令牌。
func (s *TokenService) VerifyRefresh(tokenStr string) (*Claims, error) {
	return s.verifyType(tokenStr, TokenTypeRefresh)
}

func (s *TokenService) verifyType(tokenStr string, want TokenType) (*Claims, error) {
	claims, err := s.Verify(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Type != want {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *TokenService) registered(userID string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *TokenService) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
