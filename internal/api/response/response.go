// Package response 输出所有接口共用的 JSON 响应结构：
// {"status":"success","data"|"message"} 或 {"status":"error","message"}。
package response

import (
	"errors"
	"log/slog"
	"net/http"

	"automateeasy/internal/pkg/apperr"
	"automateeasy/internal/pkg/makeclient"

	"github.com/gin-gonic/gin"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope 响应体结构。
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Results *int   `json:"results,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// OK 写出携带 data 的成功响应。
func OK(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Status: StatusSuccess, Data: data})
}

// OKList 写出带结果数量的成功响应。
func OKList(c *gin.Context, results int, data any) {
	c.JSON(http.StatusOK, Envelope{Status: StatusSuccess, Results: &results, Data: data})
}

// OKMessage 写出带提示信息（可选 data）的成功响应。
func OKMessage(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{Status: StatusSuccess, Message: message, Data: data})
}

// Fail 写出错误响应并中止后续 handler。
func Fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Envelope{Status: StatusError, Message: message})
}

// Error 将 err 归类后写出对应的错误响应。未归类的错误记录日志并返回通用 500。
func Error(c *gin.Context, logger *slog.Logger, err error) {
	e := classify(err)
	if e.Kind == apperr.KindInternal {
		logInternal(c, logger, err)
	}
	Fail(c, apperr.StatusOf(e), e.Message)
}

// classify 把 Make.com 客户端错误映射为 Upstream/Validation，其余未归类错误视为 Internal。
func classify(err error) *apperr.Error {
	if e, ok := apperr.As(err); ok {
		return e
	}

	var apiErr *makeclient.APIError
	switch {
	case errors.As(err, &apiErr):
		return apperr.Upstream(http.StatusBadGateway, apiErr.Error()).Wrap(err)
	case errors.Is(err, makeclient.ErrTimeout):
		return apperr.Upstream(http.StatusGatewayTimeout, "Make.com did not respond in time").Wrap(err)
	case errors.Is(err, makeclient.ErrNoResponse):
		return apperr.Upstream(http.StatusBadGateway, "No response received from server").Wrap(err)
	case errors.Is(err, makeclient.ErrMissingArgument):
		return apperr.Validation(err.Error())
	default:
		return apperr.Internal(err)
	}
}

func logInternal(c *gin.Context, logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Error("request failed",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("request_id", c.GetString("requestID")),
		slog.String("error", err.Error()))
}
