package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"automateeasy/internal/api/response"
	"automateeasy/internal/auth"
	"automateeasy/internal/model"
	"automateeasy/internal/pkg/apperr"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserKey   = "user"
	ctxUserIDKey = "userID"
)

const (
	msgAuthRequired = "Authentication required. Please log in."
	msgInvalidToken = "Invalid or expired token. Please log in again."
)

// AccessVerifier 校验访问令牌。
type AccessVerifier interface {
	VerifyAccess(token string) (*auth.Claims, error)
}

// UserLoader 按 ID 加载用户。
type UserLoader interface {
	CurrentUser(ctx context.Context, id string) (*model.User, error)
}

// Authenticate 校验 Bearer 访问令牌，加载用户并写入上下文。
// 过期与无效令牌统一返回 401。
func Authenticate(tokens AccessVerifier, users UserLoader, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Fail(c, http.StatusUnauthorized, msgAuthRequired)
			return
		}

		claims, err := tokens.VerifyAccess(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Fail(c, http.StatusUnauthorized, msgInvalidToken)
			return
		}

		user, err := users.CurrentUser(c.Request.Context(), claims.UserID)
		if err != nil {
			if apperr.IsKind(err, apperr.KindUnauthorized) {
				response.Fail(c, http.StatusUnauthorized, "The user with this token no longer exists.")
				return
			}
			response.Error(c, logger, err)
			return
		}

		c.Set(ctxUserKey, user)
		c.Set(ctxUserIDKey, user.ID)
		c.Next()
	}
}

// RestrictToAdmin 必须挂在 Authenticate 之后。
func RestrictToAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok || !user.IsAdmin {
			response.Error(c, nil, apperr.Forbidden())
			return
		}
		c.Next()
	}
}

// CurrentUser 返回 Authenticate 写入的用户。
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok && user != nil
}
