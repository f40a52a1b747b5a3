package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"automateeasy/internal/config"
	"automateeasy/internal/model"

	"gopkg.in/gomail.v2"
)

// ErrNotConfigured 表示 SMTP 配置缺失，邮件不会被发送。
var ErrNotConfigured = errors.New("email config missing")

// EmailNotifier 通过 SMTP 发送账户邮件。
type EmailNotifier struct {
	cfg       config.EmailConfig
	publicURL string
	apiPrefix string
	logger    *slog.Logger
	send      func(m *gomail.Message) error
}

// NewEmailNotifier 创建邮件通知器；publicURL/apiPrefix 用于拼接邮件中的链接。
func NewEmailNotifier(cfg config.EmailConfig, app config.AppConfig, logger *slog.Logger) *EmailNotifier {
	n := &EmailNotifier{
		cfg:       cfg,
		publicURL: strings.TrimRight(app.PublicURL, "/"),
		apiPrefix: app.APIPrefix,
		logger:    logger,
	}
	n.send = func(m *gomail.Message) error {
		d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)
		return d.DialAndSend(m)
	}
	return n
}

// Configured 报告 SMTP 配置是否完整。
func (n *EmailNotifier) Configured() bool {
	return n.cfg.SMTPHost != "" && n.cfg.FromEmail != ""
}

// SendVerification 发送邮箱验证邮件。
func (n *EmailNotifier) SendVerification(ctx context.Context, user *model.User, token string) error {
	link := n.publicURL + n.apiPrefix + "/auth/verify/" + url.PathEscape(token)
	body := fmt.Sprintf(verificationTemplate, html.EscapeString(user.DisplayName()), link, link)
	return n.deliver(ctx, user.Email, "[AutomateEasy] Verify your email", body)
}

// SendPasswordReset 发送重置密码邮件。
func (n *EmailNotifier) SendPasswordReset(ctx context.Context, user *model.User, token string, expiresAt time.Time) error {
	link := n.publicURL + "/reset-password?token=" + url.QueryEscape(token)
	body := fmt.Sprintf(resetTemplate,
		html.EscapeString(user.DisplayName()),
		link, link,
		expiresAt.UTC().Format("2006-01-02 15:04 MST"))
	return n.deliver(ctx, user.Email, "[AutomateEasy] Reset your password", body)
}

func (n *EmailNotifier) deliver(ctx context.Context, to, subject, body string) error {
	if !n.Configured() {
		return ErrNotConfigured
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage(gomail.SetEncoding(gomail.Unencoded))
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := n.send(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if n.logger != nil {
		n.logger.Info("email sent", slog.String("to", to), slog.String("subject", subject))
	}
	return nil
}

const verificationTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Welcome to AutomateEasy, %s</h2>
    <p>Please confirm your email address to activate your account.</p>
    <p><a href="%s" style="display:inline-block;padding:12px 20px;background:#2563eb;color:#fff;text-decoration:none;border-radius:8px;">Verify email</a></p>
    <p style="font-size:12px;color:#6b7280;">Or open this link: %s</p>
  </div>
</body>
</html>`

const resetTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Hi %s,</h2>
    <p>We received a request to reset your password.</p>
    <p><a href="%s" style="display:inline-block;padding:12px 20px;background:#2563eb;color:#fff;text-decoration:none;border-radius:8px;">Reset password</a></p>
    <p style="font-size:12px;color:#6b7280;">Or open this link: %s</p>
    <p style="font-size:12px;color:#6b7280;">The link expires at %s. If you did not request this, ignore this email.</p>
  </div>
</body>
</html>`
