package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"automateeasy/internal/model"
	"automateeasy/internal/pkg/apperr"
	applog "automateeasy/internal/pkg/logger"
	"automateeasy/internal/pkg/metrics"
	"automateeasy/internal/pkg/notify"
	"automateeasy/internal/store"
)

// 返回给客户端的提示信息。
const (
	MsgMissingCredentials = "Please provide email and password."
	MsgMissingRefresh     = "Refresh token is required."
	MsgInvalidRefresh     = "Invalid or expired refresh token."
	MsgMissingEmail       = "Please provide your email address."
	MsgForgotPassword     = "If the email exists, a password reset link will be sent."
	MsgMissingReset       = "Token and new password are required."
	MsgInvalidReset       = "Invalid or expired token."
	MsgPasswordReset      = "Password has been reset successfully. Please log in with your new password."
	MsgInvalidVerify      = "Invalid verification token."
	MsgEmailVerified      = "Email verified successfully. You can now log in to your account."
	MsgRegistered         = "User registered successfully. Please check your email to verify your account."
	MsgPasswordTooLong    = "Password must be at most 72 bytes."
)

// UserStore 认证流程依赖的存储能力。
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	SetResetToken(ctx context.Context, id string, token string, expiresAt time.Time) error
	ResetPassword(ctx context.Context, token string, passwordHash string, now time.Time) (*model.User, error)
	ConsumeVerificationToken(ctx context.Context, token string) (*model.User, error)
	PromoteAdmin(ctx context.Context, id string) error
}

// Cooldown 在时间窗口内抑制同一 key 的重复操作。
type Cooldown interface {
	IsDuplicate(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// RegisterInput 明文密码只传到 Hasher 为止。
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// LoginResult 登录成功的结果。
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	User         *model.User
}

// RefreshResult 刷新成功的结果。
type RefreshResult struct {
	AccessToken string
	ExpiresIn   int64
}

// Service 实现账号生命周期：注册、邮箱验证、登录、刷新与重置密码。
type Service struct {
	users    UserStore
	hasher   Hasher
	tokens   *TokenService
	mailer   notify.Mailer
	cooldown Cooldown
	logger   *slog.Logger
	resetTTL time.Duration
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// Option 配置 Service。
type Option func(*Service)

// WithMailer 启用验证邮件与重置邮件。
func WithMailer(m notify.Mailer) Option {
	return func(s *Service) { s.mailer = m }
}

// WithCooldown 按邮箱限制重置请求频率。
func WithCooldown(c Cooldown) Option {
	return func(s *Service) { s.cooldown = c }
}

// WithResetTokenTTL 覆盖默认 24h 的重置令牌有效期。
func WithResetTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

// WithClock 替换 time.Now。
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService 创建认证服务。
func NewService(users UserStore, hasher Hasher, tokens *TokenService, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = applog.Discard()
	}
	s := &Service{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		logger:   logger,
		resetTTL: 24 * time.Hour,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tokens 向 HTTP 层暴露令牌服务。
func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// Register 创建待验证用户并发送验证邮件。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := model.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, apperr.Validation(MsgMissingCredentials)
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		s.event("register", "duplicate")
		return nil, apperr.DuplicateEmail()
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Internal(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return nil, apperr.Validation(MsgPasswordTooLong)
		}
		return nil, apperr.Internal(err)
	}
	token, err := generateToken(tokenBytes)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user := &model.User{
		Email:              email,
		PasswordHash:       hash,
		FirstName:          model.StringPtr(in.FirstName),
		LastName:           model.StringPtr(in.LastName),
		VerificationStatus: model.VerificationPending,
		VerificationToken:  &token,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			s.event("register", "duplicate")
			return nil, apperr.DuplicateEmail()
		}
		return nil, apperr.Internal(err)
	}

	s.logger.Info("new user registered", slog.String("email", email))
	s.event("register", "success")

	if s.mailer != nil {
		if err := s.mailer.SendVerification(ctx, user, token); err != nil {
			s.logger.Warn("verification email not queued",
				slog.String("email", email),
				slog.String("error", err.Error()))
		}
	}
	return user, nil
}

// Login 校验凭据并签发访问令牌与刷新令牌。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation(MsgMissingCredentials)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Internal(err)
		}
		// 与密码错误走同样耗时的比较，避免通过响应时间枚举邮箱。
		s.hasher.Verify(password, s.dummy())
		s.event("login", "invalid_credentials")
		return nil, apperr.InvalidCredentials()
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		s.event("login", "invalid_credentials")
		return nil, apperr.InvalidCredentials()
	}
	if !user.IsVerified() {
		s.event("login", "not_verified")
		return nil, apperr.NotVerified()
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, apperr.Internal(err)
	}
	user.LastLoginAt = &now

	access, err := s.tokens.IssueAccessToken(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	s.logger.Info("user logged in", slog.String("email", email))
	s.event("login", "success")
	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.expiresIn(),
		User:         user,
	}, nil
}

// Refresh 签发新的访问令牌，刷新令牌本身不轮换。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, apperr.Validation(MsgMissingRefresh)
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		s.event("refresh", "invalid_token")
		return nil, apperr.InvalidOrExpiredToken(http.StatusUnauthorized, MsgInvalidRefresh)
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.event("refresh", "unknown_user")
			return nil, apperr.InvalidOrExpiredToken(http.StatusUnauthorized, MsgInvalidRefresh)
		}
		return nil, apperr.Internal(err)
	}

	access, err := s.tokens.IssueAccessToken(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	s.event("refresh", "success")
	return &RefreshResult{AccessToken: access, ExpiresIn: s.expiresIn()}, nil
}

// ForgotPassword 为已注册邮箱轮换重置令牌，同一邮箱在冷却期内的重复请求直接忽略。
// 无论邮箱是否存在，调用方都返回 MsgForgotPassword。
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = model.NormalizeEmail(email)
	if email == "" {
		return apperr.Validation(MsgMissingEmail)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.event("forgot_password", "unknown_email")
			return nil
		}
		return apperr.Internal(err)
	}

	// 冷却期内不轮换令牌，之前邮件中的令牌保持有效。
	claimed := false
	if s.cooldown != nil {
		dup, err := s.cooldown.IsDuplicate(ctx, email)
		switch {
		case err != nil:
			s.logger.Warn("reset cooldown unavailable", slog.String("error", err.Error()))
		case dup:
			s.logger.Info("reset request suppressed by cooldown", slog.String("email", email))
			s.event("forgot_password", "cooldown")
			return nil
		default:
			claimed = true
		}
	}

	token, err := generateToken(tokenBytes)
	if err != nil {
		s.releaseCooldown(ctx, email, claimed)
		return apperr.Internal(err)
	}
	expiresAt := s.now().UTC().Add(s.resetTTL)
	if err := s.users.SetResetToken(ctx, user.ID, token, expiresAt); err != nil {
		s.releaseCooldown(ctx, email, claimed)
		return apperr.Internal(err)
	}
	s.event("forgot_password", "token_issued")

	if s.mailer == nil {
		return nil
	}
	if err := s.mailer.SendPasswordReset(ctx, user, token, expiresAt); err != nil {
		s.logger.Warn("password reset email not queued",
			slog.String("email", email),
			slog.String("error", err.Error()))
		// 邮件未发出时允许立即重试。
		s.releaseCooldown(ctx, email, claimed)
	}
	return nil
}

func (s *Service) releaseCooldown(ctx context.Context, email string, claimed bool) {
	if !claimed {
		return
	}
	if err := s.cooldown.Delete(ctx, email); err != nil {
		s.logger.Warn("release reset cooldown failed",
			slog.String("email", email),
			slog.String("error", err.Error()))
	}
}

// ResetPassword 消费有效的重置令牌并写入新密码哈希。
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return apperr.Validation(MsgMissingReset)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return apperr.Validation(MsgPasswordTooLong)
		}
		return apperr.Internal(err)
	}

	user, err := s.users.ResetPassword(ctx, token, hash, s.now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.event("reset_password", "invalid_token")
			return apperr.InvalidOrExpiredToken(http.StatusBadRequest, MsgInvalidReset)
		}
		return apperr.Internal(err)
	}

	s.logger.Info("password reset", slog.String("email", user.Email))
	s.event("reset_password", "success")
	return nil
}

// VerifyEmail 消费验证令牌，验证令牌不设过期时间。
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.InvalidOrExpiredToken(http.StatusBadRequest, MsgInvalidVerify)
	}

	user, err := s.users.ConsumeVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.event("verify_email", "invalid_token")
			return apperr.InvalidOrExpiredToken(http.StatusBadRequest, MsgInvalidVerify)
		}
		return apperr.Internal(err)
	}

	s.logger.Info("email verified", slog.String("email", user.Email))
	s.event("verify_email", "success")
	return nil
}

// CurrentUser 加载已认证请求对应的用户。
func (s *Service) CurrentUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Unauthorized("The user with this token no longer exists.")
		}
		return nil, apperr.Internal(err)
	}
	return user, nil
}

// EnsureAdmin 为 email 创建已验证的管理员账号，账号已存在时将其提升为管理员。
// password 只在创建时使用。
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return nil, apperr.Validation(MsgMissingCredentials)
	}

	user, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.users.PromoteAdmin(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("promote admin: %w", err)
		}
		user.IsAdmin = true
		user.VerificationStatus = model.VerificationVerified
		user.VerificationToken = nil
		return user, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("find admin: %w", err)
	}

	if password == "" {
		return nil, apperr.Validation(MsgMissingCredentials)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	user = &model.User{
		Email:              email,
		PasswordHash:       hash,
		IsAdmin:            true,
		VerificationStatus: model.VerificationVerified,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	s.logger.Info("admin account created", slog.String("email", email))
	return user, nil
}

func (s *Service) expiresIn() int64 {
	return int64(s.tokens.AccessTTL() / time.Second)
}

// dummy 返回按当前代价因子计算的哈希，只计算一次。
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("automateeasy-dummy-password")
		if err != nil {
			s.logger.Error("dummy hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func (s *Service) event(op, result string) {
	metrics.AuthEventsTotal.WithLabelValues(op, result).Inc()
}
