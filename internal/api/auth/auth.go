package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"automateeasy/internal/api/middleware"
	"automateeasy/internal/api/response"
	authsvc "automateeasy/internal/auth"
	"automateeasy/internal/pkg/apperr"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidBody     = "Invalid request body."
	msgInvalidRegister = "Please provide a valid email and password."
	msgLoggedOut       = "Logged out. Discard your tokens on the client."
)

// Handler 提供 /auth 下的接口，业务逻辑全部委托给 auth.Service。
type Handler struct {
	svc    *authsvc.Service
	logger *slog.Logger
}

// NewHandler 创建 Auth Handler。
func NewHandler(svc *authsvc.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type registerRequest struct {
	Email     string `json:"email" binding:"required,email,max=255"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"firstName" binding:"max=100"`
	LastName  string `json:"lastName" binding:"max=100"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	User         any    `json:"user"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// Register 创建待验证用户。
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, h.logger, apperr.Validation(msgInvalidRegister))
		return
	}

	user, err := h.svc.Register(c.Request.Context(), authsvc.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, http.StatusCreated, authsvc.MsgRegistered, gin.H{"user": user.Profile()})
}

// Login 校验凭据并签发访问令牌与刷新令牌。
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, http.StatusOK, loginResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    res.ExpiresIn,
		User:         res.User.Profile(),
	})
}

// Refresh 用刷新令牌换取新的访问令牌。
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, http.StatusOK, refreshResponse{AccessToken: res.AccessToken, ExpiresIn: res.ExpiresIn})
}

// ForgotPassword 无论邮箱是否存在都返回相同的响应。
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.svc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		if apperr.IsKind(err, apperr.KindValidation) {
			response.Error(c, h.logger, err)
			return
		}
		// 内部错误只记录日志，响应保持一致，避免泄露邮箱是否存在。
		if h.logger != nil {
			h.logger.Error("forgot password failed", slog.String("error", err.Error()))
		}
	}
	response.OKMessage(c, http.StatusOK, authsvc.MsgForgotPassword, nil)
}

// ResetPassword 使用重置令牌设置新密码。
func (h *Handler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.svc.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, http.StatusOK, authsvc.MsgPasswordReset, nil)
}

// VerifyEmail 消费邮箱验证令牌。
func (h *Handler) VerifyEmail(c *gin.Context) {
	if err := h.svc.VerifyEmail(c.Request.Context(), c.Param("token")); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, http.StatusOK, authsvc.MsgEmailVerified, nil)
}

// Me 返回当前登录用户。
func (h *Handler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, h.logger, apperr.Unauthorized("Authentication required. Please log in."))
		return
	}
	response.OK(c, http.StatusOK, gin.H{"user": user.Profile()})
}

// Logout 令牌无状态，服务端不做任何处理，由客户端丢弃令牌。
func (h *Handler) Logout(c *gin.Context) {
	response.OKMessage(c, http.StatusOK, msgLoggedOut, nil)
}

// bind 解析 JSON 请求体；空请求体视为所有字段缺失，交由 Service 返回对应提示。
func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, h.logger, apperr.Validation(msgInvalidBody))
		return false
	}
	return true
}
