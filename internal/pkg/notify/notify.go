package notify

import (
	"context"
	"time"

	"automateeasy/internal/model"
)

// Mailer 定义账户相关邮件的发送接口。
type Mailer interface {
	// SendVerification 发送邮箱验证链接。
	SendVerification(ctx context.Context, user *model.User, token string) error
	// SendPasswordReset 发送重置密码链接，expiresAt 为令牌截止时间。
	SendPasswordReset(ctx context.Context, user *model.User, token string, expiresAt time.Time) error
}
