package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"automateeasy/internal/api/response"
	"automateeasy/internal/pkg/apperr"
	"automateeasy/internal/pkg/metrics"
	"automateeasy/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

// Limiter 是按 key 限流的非阻塞接口。
type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

// RateLimit 按客户端 IP 限流；limiter 为 nil 时直接放行。
// Redis 故障时放行请求（fail open），只记录告警。
func RateLimit(limiter Limiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		d, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			if logger != nil {
				logger.Warn("rate limiter unavailable", slog.String("error", err.Error()))
			}
			c.Next()
			return
		}
		if !d.Allowed {
			metrics.RateLimitRejectedTotal.Inc()
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
			e := apperr.TooManyRequests()
			response.Fail(c, http.StatusTooManyRequests, e.Message)
			return
		}
		c.Next()
	}
}

func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
