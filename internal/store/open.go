package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"automateeasy/internal/config"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// ErrConnectExhausted 表示重试次数用尽仍无法连接数据库。
var ErrConnectExhausted = errors.New("database connection retries exhausted")

// Open 连接数据库（带指数退避重试）并按需执行迁移。
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*gorm.DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	dialector, err := dialectorFor(cfg.Driver, dsn)
	if err != nil {
		return nil, err
	}

	var db *gorm.DB
	err = retry(ctx, cfg.MaxRetries, cfg.RetryBaseDelay, cfg.RetryMaxDelay, logger, func() error {
		conn, err := gorm.Open(dialector, &gorm.Config{
			Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
			TranslateError: true,
			NowFunc:        func() time.Time { return time.Now().UTC() },
		})
		if err != nil {
			return err
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return err
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		db = conn
		return nil
	})
	if err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database connection established", slog.String("driver", cfg.Driver))
	}

	if !cfg.SkipMigrations {
		if err := Migrate(ctx, db, cfg.Driver, logger); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// retry 执行 fn，失败后按 min(base*2^n, max) 退避，最多 attempts 次重试。
func retry(ctx context.Context, attempts int, base, max time.Duration, logger *slog.Logger, fn func() error) error {
	if attempts < 0 {
		attempts = 0
	}
	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if logger != nil {
			logger.Error("database connection failed",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", attempts+1),
				slog.String("error", lastErr.Error()))
		}
		if attempt == attempts {
			break
		}

		delay := backoff(attempt, base, max)
		if logger != nil {
			logger.Info("retrying database connection", slog.String("delay", delay.String()))
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w: %v", ErrConnectExhausted, lastErr)
}

func backoff(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if attempt >= 30 {
		return max
	}
	delay := base << uint(attempt+1)
	if delay <= 0 || (max > 0 && delay > max) {
		return max
	}
	return delay
}
