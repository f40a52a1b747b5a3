package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"automateeasy/internal/model"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// UserStore 是用户表的唯一持久化入口。
//
// 它只接收已经计算好的密码哈希，不做任何隐式的 hook 处理。
type UserStore struct {
	db *gorm.DB
}

// NewUserStore 基于已打开的 gorm 连接创建存储。
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// DB 暴露底层连接，供健康检查与关闭使用。
func (s *UserStore) DB() *gorm.DB {
	return s.db
}

// Create 插入新用户。邮箱冲突（包括并发注册导致的唯一键冲突）返回 ErrDuplicateEmail。
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	if user.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = model.NormalizeEmail(user.Email)
	if user.Timezone == "" {
		user.Timezone = "UTC"
	}
	if user.SubscriptionStatus == "" {
		user.SubscriptionStatus = "inactive"
	}
	if user.VerificationStatus == "" {
		user.VerificationStatus = model.VerificationUnverified
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// FindByEmail 按邮箱（不区分大小写）查找用户。
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", model.NormalizeEmail(email)).First(&user).Error
	if err != nil {
		return nil, translate(err, "find user by email")
	}
	return &user, nil
}

// FindByID 按 ID 查找用户。
func (s *UserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	var user model.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err, "find user by id")
	}
	return &user, nil
}

// TouchLastLogin 记录最近一次登录时间。
func (s *UserStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("last_login_at", at)
	if res.Error != nil {
		return fmt.Errorf("touch last login: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetResetToken 写入重置令牌及其截止时间，覆盖之前未使用的令牌。
func (s *UserStore) SetResetToken(ctx context.Context, id string, token string, expiresAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"reset_password_token":   token,
		"reset_token_expires_at": expiresAt,
	})
	if res.Error != nil {
		return fmt.Errorf("set reset token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearExpiredResetTokens 清空所有已过期的重置令牌，返回受影响的行数。
func (s *UserStore) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.User{}).
		Where("reset_password_token IS NOT NULL AND reset_token_expires_at < ?", now).
		Updates(map[string]interface{}{
			"reset_password_token":   nil,
			"reset_token_expires_at": nil,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("clear expired reset tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ResetPassword 在一个事务中校验令牌与截止时间，并与新密码哈希一起清空令牌字段。
//
// 更新语句以令牌本身作为条件，同一令牌的并发重置只有一个会生效。
func (s *UserStore) ResetPassword(ctx context.Context, token string, passwordHash string, now time.Time) (*model.User, error) {
	if token == "" || passwordHash == "" {
		return nil, ErrNotFound
	}

	var user model.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("reset_password_token = ?", token).First(&user).Error; err != nil {
			return err
		}
		if user.ResetTokenExpiresAt == nil || !now.Before(*user.ResetTokenExpiresAt) {
			return ErrNotFound
		}

		res := tx.Model(&model.User{}).
			Where("id = ? AND reset_password_token = ?", user.ID, token).
			Updates(map[string]interface{}{
				"password_hash":          passwordHash,
				"reset_password_token":   nil,
				"reset_token_expires_at": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, translate(err, "reset password")
	}

	user.PasswordHash = passwordHash
	user.ResetPasswordToken = nil
	user.ResetTokenExpiresAt = nil
	return &user, nil
}

// ConsumeVerificationToken 将持有该令牌的用户标记为已验证并清空令牌。
func (s *UserStore) ConsumeVerificationToken(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}

	var user model.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("verification_token = ?", token).First(&user).Error; err != nil {
			return err
		}
		res := tx.Model(&model.User{}).
			Where("id = ? AND verification_token = ?", user.ID, token).
			Updates(map[string]interface{}{
				"verification_status": model.VerificationVerified,
				"verification_token":  nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, translate(err, "verify email")
	}

	user.VerificationStatus = model.VerificationVerified
	user.VerificationToken = nil
	return &user, nil
}

// PromoteAdmin 将用户标记为已验证的管理员。
func (s *UserStore) PromoteAdmin(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_admin":            true,
		"verification_status": model.VerificationVerified,
		"verification_token":  nil,
	})
	if res.Error != nil {
		return fmt.Errorf("promote admin: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping 检查数据库连通性。
func (s *UserStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭底层连接池。
func (s *UserStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isDuplicateKey 识别各驱动的唯一键冲突。
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
