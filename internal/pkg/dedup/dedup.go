package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "automateeasy:dedup:"

// Deduplicator 用 Redis SETNX 实现固定窗口去重：窗口内同一 key 只有第一次返回 false。
type Deduplicator struct {
	rdb       *redis.Client
	namespace string
	ttl       time.Duration
}

// NewDeduplicator 创建去重器；namespace 用于区分用途（如 "reset"）。
func NewDeduplicator(rdb *redis.Client, namespace string, ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if namespace == "" {
		namespace = "default"
	}
	return &Deduplicator{
		rdb:       rdb,
		namespace: namespace,
		ttl:       ttl,
	}
}

// IsDuplicate 在窗口内第二次及以后看到同一 value 时返回 true。
// 未配置 Redis 时永远返回 false。
func (d *Deduplicator) IsDuplicate(ctx context.Context, value string) (bool, error) {
	if d == nil || d.rdb == nil || value == "" {
		return false, nil
	}
	ok, err := d.rdb.SetNX(ctx, d.key(value), "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup setnx: %w", err)
	}
	return !ok, nil
}

// Delete 提前结束窗口。
func (d *Deduplicator) Delete(ctx context.Context, value string) error {
	if d == nil || d.rdb == nil || value == "" {
		return nil
	}
	if err := d.rdb.Del(ctx, d.key(value)).Err(); err != nil {
		return fmt.Errorf("dedup del: %w", err)
	}
	return nil
}

// key 对原值做哈希，避免邮箱明文出现在 Redis 中。
func (d *Deduplicator) key(value string) string {
	sum := sha256.Sum256([]byte(value))
	return keyPrefix + d.namespace + ":" + hex.EncodeToString(sum[:])
}
