// Package janitor 周期性清理数据库中的过期数据。
package janitor

import (
	"context"
	"log/slog"
	"time"

	"automateeasy/internal/pkg/metrics"
)

// TokenStore 是 janitor 依赖的存储能力。
type TokenStore interface {
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// Janitor 定期清空已过期的重置密码令牌。
type Janitor struct {
	store    TokenStore
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// New 创建 Janitor；interval <= 0 时使用 1h。
func New(store TokenStore, logger *slog.Logger, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{
		store:    store,
		logger:   logger,
		interval: interval,
		timeout:  time.Minute,
		now:      time.Now,
	}
}

// Start 在后台运行清理循环，ctx 取消后退出。
func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	j.logger.Info("janitor started", slog.Duration("interval", j.interval))

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := j.RunOnce(ctx); err != nil {
					j.logger.Error("janitor failed to clear reset tokens", slog.String("error", err.Error()))
				}
			}
		}
	}()
}

// RunOnce 执行一次清理并返回清除的令牌数量。
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	runCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	n, err := j.store.ClearExpiredResetTokens(runCtx, j.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.ExpiredResetTokensCleared.Add(float64(n))
		j.logger.Info("janitor cleared expired reset tokens", slog.Int64("count", n))
	}
	return n, nil
}
