package model

import (
	"strings"
	"time"
)

// 邮箱验证状态。
const (
	VerificationUnverified = "unverified"
	VerificationPending    = "pending"
	VerificationVerified   = "verified"
)

// User 表示系统用户。
//
// 明文密码从不出现在该结构体上：调用方先计算哈希，再把 PasswordHash 交给存储层。
// 敏感字段全部标记为 json:"-"，对外输出请使用 Profile()。
type User struct {
	ID           string  `gorm:"type:varchar(36);primaryKey" json:"id"`               // UUID
	Email        string  `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"` // 邮箱（唯一，小写存储）
	PasswordHash string  `gorm:"type:varchar(255);not null" json:"-"`                 // bcrypt 哈希
	FirstName    *string `gorm:"type:varchar(100)" json:"firstName"`
	LastName     *string `gorm:"type:varchar(100)" json:"lastName"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	LastLoginAt *time.Time `json:"lastLoginAt"` // 最近登录时间

	SubscriptionTier        *string    `gorm:"type:varchar(50)" json:"subscriptionTier"`
	SubscriptionStatus      string     `gorm:"type:varchar(50);not null;default:inactive" json:"subscriptionStatus"`
	SubscriptionRenewalDate *time.Time `json:"subscriptionRenewalDate"`
	Timezone                string     `gorm:"type:varchar(50);default:UTC" json:"timezone"`
	IsAdmin                 bool       `gorm:"default:false" json:"isAdmin"`

	VerificationStatus  string     `gorm:"type:varchar(50);index;default:unverified" json:"verificationStatus"`
	VerificationToken   *string    `gorm:"type:varchar(255);index" json:"-"` // 一次性邮箱验证令牌
	ResetPasswordToken  *string    `gorm:"type:varchar(255);index" json:"-"` // 一次性重置密码令牌
	ResetTokenExpiresAt *time.Time `json:"-"`                                // 重置令牌截止时间
}

// TableName 固定表名为 users。
func (User) TableName() string {
	return "users"
}

// IsVerified 报告邮箱是否已验证。
func (u *User) IsVerified() bool {
	return u.VerificationStatus == VerificationVerified
}

// DisplayName 返回全名；缺少姓或名时退化为已有的那一个，都没有则返回 "User"。
func (u *User) DisplayName() string {
	first := strings.TrimSpace(deref(u.FirstName))
	last := strings.TrimSpace(deref(u.LastName))
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	default:
		return "User"
	}
}

// Profile 返回可以安全返回给客户端的用户信息。
func (u *User) Profile() PublicProfile {
	return PublicProfile{
		ID:                 u.ID,
		Email:              u.Email,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		FullName:           u.DisplayName(),
		IsAdmin:            u.IsAdmin,
		VerificationStatus: u.VerificationStatus,
		SubscriptionTier:   u.SubscriptionTier,
		SubscriptionStatus: u.SubscriptionStatus,
		Timezone:           u.Timezone,
		LastLoginAt:        u.LastLoginAt,
		CreatedAt:          u.CreatedAt,
	}
}

// PublicProfile 是用户记录中对客户端可见的子集。
type PublicProfile struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	FirstName          *string    `json:"firstName"`
	LastName           *string    `json:"lastName"`
	FullName           string     `json:"fullName"`
	IsAdmin            bool       `json:"isAdmin"`
	VerificationStatus string     `json:"verificationStatus"`
	SubscriptionTier   *string    `json:"subscriptionTier,omitempty"`
	SubscriptionStatus string     `json:"subscriptionStatus,omitempty"`
	Timezone           string     `json:"timezone,omitempty"`
	LastLoginAt        *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// NormalizeEmail 去除空白并转为小写，保证邮箱比较不区分大小写。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// StringPtr 把空字符串转换为 nil。
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
