package notify

import (
	"context"
	"log/slog"
	"time"

	"automateeasy/internal/model"
	"automateeasy/internal/pkg/queue"
)

// Dispatcher 把邮件投递放入异步队列，调用方永远不会等待 SMTP。
type Dispatcher struct {
	mailer Mailer
	queue  *queue.Queue
	logger *slog.Logger
}

// NewDispatcher 创建异步投递器。
func NewDispatcher(mailer Mailer, q *queue.Queue, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{mailer: mailer, queue: q, logger: logger}
}

func (d *Dispatcher) SendVerification(_ context.Context, user *model.User, token string) error {
	u := *user
	return d.queue.Enqueue(queue.Job{
		Name: "verification_email",
		Run: func(ctx context.Context) error {
			return d.mailer.SendVerification(ctx, &u, token)
		},
	})
}

func (d *Dispatcher) SendPasswordReset(_ context.Context, user *model.User, token string, expiresAt time.Time) error {
	u := *user
	return d.queue.Enqueue(queue.Job{
		Name: "password_reset_email",
		Run: func(ctx context.Context) error {
			return d.mailer.SendPasswordReset(ctx, &u, token, expiresAt)
		},
	})
}
