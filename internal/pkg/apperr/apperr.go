// Package apperr 定义 HTTP 层与认证流程共用的错误分类。
// 返回给客户端的错误都是 *Error，其它错误一律按内部错误处理，只输出通用提示。
package apperr

import (
	"errors"
	"net/http"
)

// Kind 错误类别。
type Kind string

const (
	KindValidation            Kind = "validation"
	KindDuplicateEmail        Kind = "duplicate_email"
	KindInvalidCredentials    Kind = "invalid_credentials"
	KindNotVerified           Kind = "not_verified"
	KindInvalidOrExpiredToken Kind = "invalid_or_expired_token"
	KindUnauthorized          Kind = "unauthorized"
	KindForbidden             Kind = "forbidden"
	KindNotFound              Kind = "not_found"
	KindTooManyRequests       Kind = "too_many_requests"
	KindUpstream              Kind = "upstream"
	KindInternal              Kind = "internal"
)

// Error 已分类、可安全返回给客户端的错误。
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 按 Kind 比较，可以写 errors.Is(err, apperr.NotVerified())。
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New 创建 *Error。
func New(kind Kind, status int, message string) *Error {
	return &Error{Kind: kind, Status: status, Message: message}
}

// Wrap 附加底层原因，只写日志，不返回给客户端。
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

func Validation(message string) *Error {
	return New(KindValidation, http.StatusBadRequest, message)
}

func DuplicateEmail() *Error {
	return New(KindDuplicateEmail, http.StatusBadRequest, "Email is already registered.")
}

func InvalidCredentials() *Error {
	return New(KindInvalidCredentials, http.StatusUnauthorized, "Incorrect email or password.")
}

func NotVerified() *Error {
	return New(KindNotVerified, http.StatusUnauthorized, "Please verify your email before logging in.")
}

// InvalidOrExpiredToken 需显式传入状态码：refresh 为 401，reset/verify 为 400。
func InvalidOrExpiredToken(status int, message string) *Error {
	return New(KindInvalidOrExpiredToken, status, message)
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, http.StatusUnauthorized, message)
}

func Forbidden() *Error {
	return New(KindForbidden, http.StatusForbidden, "You do not have permission to perform this action.")
}

func NotFound(message string) *Error {
	return New(KindNotFound, http.StatusNotFound, message)
}

func TooManyRequests() *Error {
	return New(KindTooManyRequests, http.StatusTooManyRequests, "Too many requests, please try again later.")
}

func Upstream(status int, message string) *Error {
	return New(KindUpstream, status, message)
}

// Internal 意外错误对客户端只显示这一条提示。
func Internal(err error) *Error {
	return New(KindInternal, http.StatusInternalServerError, "Something went wrong.").Wrap(err)
}

// As 从 err 中取出 *Error。
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind 判断 err 是否属于指定类别。
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// StatusOf 返回 err 对应的 HTTP 状态码，未分类时为 500。
func StatusOf(err error) int {
	if e, ok := As(err); ok && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}
