package api

import (
	"context"
	"log/slog"
)

// SeedAdmin 确保 ADMIN_EMAIL 对应的管理员账号存在。未配置或数据库不可用时跳过。
func (s *Server) SeedAdmin(ctx context.Context) error {
	email := s.cfg.Security.AdminEmail
	if email == "" || s.authSvc == nil {
		return nil
	}
	user, err := s.authSvc.EnsureAdmin(ctx, email, s.cfg.Security.AdminPassword)
	if err != nil {
		return err
	}
	s.logger.Info("admin account ready", slog.String("user_id", user.ID), slog.String("email", user.Email))
	return nil
}
