package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	authhandler "automateeasy/internal/api/auth"
	"automateeasy/internal/api/middleware"
	"automateeasy/internal/api/response"
	authsvc "automateeasy/internal/auth"
	"automateeasy/internal/catalog"
	"automateeasy/internal/config"
	"automateeasy/internal/janitor"
	"automateeasy/internal/pkg/dedup"
	"automateeasy/internal/pkg/makeclient"
	"automateeasy/internal/pkg/metrics"
	"automateeasy/internal/pkg/notify"
	"automateeasy/internal/pkg/queue"
	"automateeasy/internal/pkg/ratelimit"
	"automateeasy/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// MakeAPI 是 Make.com 客户端在 HTTP 层需要的能力。
type MakeAPI interface {
	Configured() bool
	GetTeams(ctx context.Context) (json.RawMessage, error)
	GetScenarios(ctx context.Context, teamID string) (json.RawMessage, error)
	GetScenario(ctx context.Context, scenarioID string) (json.RawMessage, error)
	CloneScenario(ctx context.Context, scenarioID, teamID, name string) (json.RawMessage, error)
	UpdateScenario(ctx context.Context, scenarioID string, body any) (json.RawMessage, error)
	ActivateScenario(ctx context.Context, scenarioID string) (json.RawMessage, error)
	DeactivateScenario(ctx context.Context, scenarioID string) (json.RawMessage, error)
	GetScenarioExecutions(ctx context.Context, scenarioID string, query url.Values) (json.RawMessage, error)
}

// Deps 是 Server 的外部依赖。Users 为 nil 表示数据库不可用，Redis/Mailer 可选。
type Deps struct {
	Users   *store.UserStore
	Redis   *redis.Client
	Mailer  notify.Mailer
	Make    MakeAPI
	Catalog *catalog.Catalog
}

// Server 封装 API 服务的依赖与路由。
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	users   *store.UserStore
	rdb     *redis.Client
	router  *gin.Engine
	authSvc *authsvc.Service
	tokens  *authsvc.TokenService
	auth    *authhandler.Handler
	catalog *catalog.Catalog
	make    MakeAPI
	limiter middleware.Limiter
	queue   *queue.Queue
	janitor *janitor.Janitor
}

// NewServer 连接数据库与 Redis 并初始化服务器。
//
// 数据库连接重试耗尽时：production 环境返回错误，其它环境以降级模式继续运行，
// 依赖数据库的接口返回 503。
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	deps := Deps{
		Make:    makeclient.New(cfg.Make, logger),
		Catalog: catalog.New(),
	}

	db, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("open database: %w", err)
		}
		logger.Error("database unavailable, continuing in degraded mode", slog.String("error", err.Error()))
	} else {
		deps.Users = store.NewUserStore(db)
	}

	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, rate limiting and reset cooldown disabled", slog.String("error", err.Error()))
			_ = rdb.Close()
		} else {
			deps.Redis = rdb
		}
	}

	mailer := notify.NewEmailNotifier(cfg.Email, cfg.App, logger)
	if mailer.Configured() {
		deps.Mailer = mailer
	} else {
		logger.Warn("smtp not configured, verification and reset emails will not be sent")
	}

	return New(cfg, logger, deps)
}

// New 基于已构建的依赖初始化服务器。
func New(cfg *config.Config, logger *slog.Logger, deps Deps) (*Server, error) {
	tokens, err := authsvc.NewTokenService(cfg.Security)
	if err != nil {
		return nil, err
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.New()
	}

	metrics.InitMetrics()

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		users:   deps.Users,
		rdb:     deps.Redis,
		tokens:  tokens,
		catalog: deps.Catalog,
		make:    deps.Make,
	}

	if deps.Redis != nil && cfg.App.RateLimit > 0 {
		s.limiter = ratelimit.NewLimiter(deps.Redis, "", cfg.App.RateLimit, cfg.App.RateBurst)
	}

	if deps.Users != nil {
		opts := []authsvc.Option{authsvc.WithResetTokenTTL(cfg.Security.ResetTokenTTL)}
		if deps.Mailer != nil {
			s.queue = queue.New(logger, cfg.App.MailWorkers, cfg.App.MailQueueCapacity, 30*time.Second)
			opts = append(opts, authsvc.WithMailer(notify.NewDispatcher(deps.Mailer, s.queue, logger)))
		}
		if deps.Redis != nil {
			opts = append(opts, authsvc.WithCooldown(dedup.NewDeduplicator(deps.Redis, "reset", cfg.App.ResetCooldown)))
		}
		hasher := authsvc.NewBcryptHasher(cfg.Security.BcryptCost)
		s.authSvc = authsvc.NewService(deps.Users, hasher, tokens, logger, opts...)
		s.auth = authhandler.NewHandler(s.authSvc, logger)
		s.janitor = janitor.New(deps.Users, logger, cfg.App.JanitorInterval)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.CustomRecovery(s.recoverPanic))
	r.Use(middleware.RequestLogger(logger))
	s.router = r

	s.registerRoutes()
	return s, nil
}

// Start 启动后台 worker（邮件队列与过期令牌清理）。
func (s *Server) Start(ctx context.Context) {
	if s.queue != nil {
		// 邮件 worker 不跟随信号退出，由 Close 排空。
		s.queue.Start(context.WithoutCancel(ctx))
	}
	if s.janitor != nil {
		s.janitor.Start(ctx)
	}
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// Close 排空邮件队列并关闭数据库与缓存连接。
func (s *Server) Close(timeout time.Duration) error {
	var errs []error
	if s.queue != nil {
		if err := s.queue.Shutdown(timeout); err != nil && !errors.Is(err, queue.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.users != nil {
		if err := s.users.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// registerRoutes 注册所有路由。
func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group(s.cfg.App.APIPrefix)

	authn := s.requireDatabase()
	if s.authSvc != nil {
		authn = middleware.Authenticate(s.tokens, s.authSvc, s.logger)
	}

	// s.auth 为 nil 时方法值不会被调用，requireDatabase 先返回 503。
	authGroup := v1.Group("/auth", s.requireDatabase())
	{
		limited := authGroup.Group("")
		if s.limiter != nil {
			limited.Use(middleware.RateLimit(s.limiter, s.logger))
		}
		limited.POST("/register", s.auth.Register)
		limited.POST("/login", s.auth.Login)
		limited.POST("/refresh", s.auth.Refresh)
		limited.POST("/forgot-password", s.auth.ForgotPassword)
		limited.POST("/reset-password", s.auth.ResetPassword)

		authGroup.GET("/verify/:token", s.auth.VerifyEmail)
		authGroup.GET("/me", authn, s.auth.Me)
		authGroup.POST("/logout", authn, s.auth.Logout)
	}

	templates := v1.Group("/templates")
	templates.GET("", s.handleListTemplates)
	templates.GET("/search", s.handleSearchTemplates)
	templates.GET("/categories", s.handleTemplateCategories)
	templates.GET("/:id", s.handleGetTemplate)

	integrations := v1.Group("/integrations/make", s.requireDatabase(), authn, middleware.RestrictToAdmin(), s.requireMake())
	integrations.GET("/teams", s.handleMakeTeams)
	integrations.GET("/teams/:teamId/scenarios", s.handleMakeScenarios)
	integrations.GET("/scenarios/:id", s.handleMakeScenario)
	integrations.POST("/scenarios/:id/clone", s.handleMakeClone)
	integrations.PATCH("/scenarios/:id", s.handleMakeUpdate)
	integrations.POST("/scenarios/:id/activate", s.handleMakeActivate)
	integrations.POST("/scenarios/:id/deactivate", s.handleMakeDeactivate)
	integrations.GET("/scenarios/:id/executions", s.handleMakeExecutions)

	s.router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, "Route not found")
	})
	s.router.NoMethod(func(c *gin.Context) {
		response.Fail(c, http.StatusMethodNotAllowed, "Method not allowed")
	})
}

func (s *Server) requireDatabase() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.authSvc == nil {
			response.Fail(c, http.StatusServiceUnavailable, "Service temporarily unavailable. Please try again later.")
			return
		}
		c.Next()
	}
}

func (s *Server) requireMake() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.make == nil || !s.make.Configured() {
			response.Fail(c, http.StatusServiceUnavailable, "Make.com integration is not configured.")
			return
		}
		c.Next()
	}
}

func (s *Server) recoverPanic(c *gin.Context, recovered any) {
	s.logger.Error("panic recovered",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Any("panic", recovered))
	response.Fail(c, http.StatusInternalServerError, "Something went wrong.")
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	// 启动时未能连接数据库为 degraded，运行中 ping 失败为 disconnected。
	database := "degraded"
	if s.users != nil {
		database = "connected"
		if err := s.users.Ping(ctx); err != nil {
			database = "disconnected"
		}
	}
	cache := "disabled"
	if s.rdb != nil {
		cache = "up"
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			cache = "down"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    response.StatusSuccess,
		"message":   "Server is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database":  database,
		"redis":     cache,
	})
}
