package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "default_jwt_secret_key_for_development"

// ErrInsecureSecret 表示生产环境仍在使用默认的 JWT 密钥。
var ErrInsecureSecret = errors.New("jwt secret must be set in production")

// Config 保存应用程序配置。
type Config struct {
	App      AppConfig      `json:"app"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Email    EmailConfig    `json:"email"`
	Security SecurityConfig `json:"security"`
	Make     MakeConfig     `json:"make"`
}

// AppConfig 应用程序基础配置。
type AppConfig struct {
	Env               string        `json:"env"`                 // 运行环境: development / test / production
	LogLevel          string        `json:"log_level"`           // 日志级别: debug / info / warn / error
	HTTPAddr          string        `json:"http_addr"`           // API 服务监听地址
	APIPrefix         string        `json:"api_prefix"`          // 路由前缀，如 /api/v1
	PublicURL         string        `json:"public_url"`          // 邮件中链接使用的站点地址
	RateLimit         float64       `json:"rate_limit"`          // 认证接口限流速率（token/s，0 表示关闭）
	RateBurst         float64       `json:"rate_burst"`          // 限流桶容量
	MailWorkers       int           `json:"mail_workers"`        // 邮件发送 worker 数量
	MailQueueCapacity int           `json:"mail_queue_capacity"` // 邮件队列容量
	ResetCooldown     time.Duration `json:"reset_cooldown"`      // 同一邮箱重置邮件的最小间隔
	JanitorInterval   time.Duration `json:"janitor_interval"`    // 过期重置令牌清理周期（0 使用默认 1h）
}

// DatabaseConfig 关系型数据库配置。URL 非空时优先使用。
type DatabaseConfig struct {
	Driver         string        `json:"driver"` // postgres / mysql / sqlite
	URL            string        `json:"url"`    // 完整连接串（DATABASE_URL）
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	Name           string        `json:"name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxOpenConns   int           `json:"max_open_conns"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxRetries     int           `json:"max_retries"`      // 初次连接最大重试次数
	RetryBaseDelay time.Duration `json:"retry_base_delay"` // 指数退避基准间隔
	RetryMaxDelay  time.Duration `json:"retry_max_delay"`  // 单次退避上限
	SkipMigrations bool          `json:"skip_migrations"`  // 启动时跳过迁移
}

// RedisConfig Redis 配置。Addr 为空表示不启用限流与冷却。
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// Enabled 报告是否配置了 Redis。
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

// EmailConfig 邮件通知配置。
type EmailConfig struct {
	SMTPHost  string `json:"smtp_host"`
	SMTPPort  int    `json:"smtp_port"`
	SMTPUser  string `json:"smtp_user"`
	SMTPPass  string `json:"smtp_pass"`
	FromEmail string `json:"from_email"`
}

// SecurityConfig 安全相关配置。
type SecurityConfig struct {
	JWTSecret       string        `json:"jwt_secret"`        // JWT 签名密钥
	JWTIssuer       string        `json:"jwt_issuer"`        // iss 声明
	AccessTokenTTL  time.Duration `json:"access_token_ttl"`  // 访问令牌有效期（默认 15m）
	RefreshTokenTTL time.Duration `json:"refresh_token_ttl"` // 刷新令牌有效期（默认 7 天）
	ResetTokenTTL   time.Duration `json:"reset_token_ttl"`   // 重置密码令牌有效期（默认 24h）
	BcryptCost      int           `json:"bcrypt_cost"`       // bcrypt 代价因子
	AdminEmail      string        `json:"admin_email"`       // 启动时确保存在的管理员账号（可选）
	AdminPassword   string        `json:"admin_password"`    // 管理员初始密码，仅在创建时使用
}

// MakeConfig Make.com API 配置。
type MakeConfig struct {
	APIKey  string        `json:"api_key"`
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
}

// Load 从 JSON 文件加载配置。
//
// 它会尝试读取 configs/config.json 文件，如果不存在则使用默认值，
// 最后由环境变量覆盖。
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// Validate 检查配置在当前环境下是否可用。
func (c *Config) Validate() error {
	if c.IsProduction() && (c.Security.JWTSecret == "" || c.Security.JWTSecret == defaultJWTSecret) {
		return ErrInsecureSecret
	}
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	return nil
}

// IsProduction 报告是否运行在生产环境。
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

// DSN 根据驱动返回 gorm 可用的连接串。
func (d DatabaseConfig) DSN() (string, error) {
	switch d.Driver {
	case "postgres":
		if d.URL != "" {
			return d.URL, nil
		}
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(d.User, d.Password),
			Host:   d.Host + ":" + strconv.Itoa(d.Port),
			Path:   "/" + d.Name,
		}
		if d.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": []string{d.SSLMode}}.Encode()
		}
		return u.String(), nil
	case "mysql":
		if d.URL != "" {
			return strings.TrimPrefix(d.URL, "mysql://"), nil
		}
		mc := mysql.NewConfig()
		mc.User = d.User
		mc.Passwd = d.Password
		mc.Net = "tcp"
		mc.Addr = d.Host + ":" + strconv.Itoa(d.Port)
		mc.DBName = d.Name
		mc.ParseTime = true
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return mc.FormatDSN(), nil
	case "sqlite":
		if d.URL != "" {
			return d.URL, nil
		}
		if d.Name == "" {
			return "automateeasy.db", nil
		}
		return d.Name, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", d.Driver)
	}
}

// getDefaultConfig 返回默认配置。
func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:               "development",
			LogLevel:          "info",
			HTTPAddr:          ":3000",
			APIPrefix:         "/api/v1",
			PublicURL:         "http://localhost:3000",
			RateLimit:         1,
			RateBurst:         10,
			MailWorkers:       2,
			MailQueueCapacity: 100,
			ResetCooldown:     time.Minute,
			JanitorInterval:   time.Hour,
		},
		Database: DatabaseConfig{
			Driver:         "postgres",
			Host:           "localhost",
			Port:           5432,
			User:           "postgres",
			Password:       "postgres",
			Name:           "automateeasy",
			SSLMode:        "disable",
			MaxOpenConns:   10,
			MaxIdleConns:   2,
			MaxRetries:     5,
			RetryBaseDelay: time.Second,
			RetryMaxDelay:  30 * time.Second,
		},
		Redis: RedisConfig{},
		Email: EmailConfig{
			SMTPHost: "smtp.gmail.com",
			SMTPPort: 587,
		},
		Security: SecurityConfig{
			JWTSecret:       defaultJWTSecret,
			JWTIssuer:       "automateeasy",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
			ResetTokenTTL:   24 * time.Hour,
			BcryptCost:      12,
		},
		Make: MakeConfig{
			BaseURL: "https://eu1.make.com/api/v2",
			Timeout: 10 * time.Second,
		},
	}
}

// applyDefaults 对未设置的字段应用默认值。
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = defaults.App.HTTPAddr
	}
	if cfg.App.APIPrefix == "" {
		cfg.App.APIPrefix = defaults.App.APIPrefix
	}
	if cfg.App.PublicURL == "" {
		cfg.App.PublicURL = defaults.App.PublicURL
	}
	if cfg.App.RateBurst == 0 {
		cfg.App.RateBurst = defaults.App.RateBurst
	}
	if cfg.App.MailWorkers == 0 {
		cfg.App.MailWorkers = defaults.App.MailWorkers
	}
	if cfg.App.MailQueueCapacity == 0 {
		cfg.App.MailQueueCapacity = defaults.App.MailQueueCapacity
	}
	if cfg.App.ResetCooldown == 0 {
		cfg.App.ResetCooldown = defaults.App.ResetCooldown
	}
	if cfg.App.JanitorInterval == 0 {
		cfg.App.JanitorInterval = defaults.App.JanitorInterval
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = defaults.Database.Driver
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = defaults.Database.Host
	}
	if cfg.Database.Port == 0 {
		if cfg.Database.Driver == "mysql" {
			cfg.Database.Port = 3306
		} else {
			cfg.Database.Port = defaults.Database.Port
		}
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = defaults.Database.Name
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = defaults.Database.MaxOpenConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = defaults.Database.MaxIdleConns
	}
	if cfg.Database.MaxRetries == 0 {
		cfg.Database.MaxRetries = defaults.Database.MaxRetries
	}
	if cfg.Database.RetryBaseDelay == 0 {
		cfg.Database.RetryBaseDelay = defaults.Database.RetryBaseDelay
	}
	if cfg.Database.RetryMaxDelay == 0 {
		cfg.Database.RetryMaxDelay = defaults.Database.RetryMaxDelay
	}

	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = defaults.Email.SMTPPort
	}

	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = defaults.Security.JWTSecret
	}
	if cfg.Security.JWTIssuer == "" {
		cfg.Security.JWTIssuer = defaults.Security.JWTIssuer
	}
	if cfg.Security.AccessTokenTTL == 0 {
		cfg.Security.AccessTokenTTL = defaults.Security.AccessTokenTTL
	}
	if cfg.Security.RefreshTokenTTL == 0 {
		cfg.Security.RefreshTokenTTL = defaults.Security.RefreshTokenTTL
	}
	if cfg.Security.ResetTokenTTL == 0 {
		cfg.Security.ResetTokenTTL = defaults.Security.ResetTokenTTL
	}
	if cfg.Security.BcryptCost == 0 {
		cfg.Security.BcryptCost = defaults.Security.BcryptCost
	}

	if cfg.Make.BaseURL == "" {
		cfg.Make.BaseURL = defaults.Make.BaseURL
	}
	if cfg.Make.Timeout == 0 {
		cfg.Make.Timeout = defaults.Make.Timeout
	}
}

func applyEnvOverrides(cfg *Config) {
	vp := viper.New()
	vp.AutomaticEnv()

	_ = vp.BindEnv("database_url", "DATABASE_URL")
	_ = vp.BindEnv("db_password", "DB_PASSWORD")
	_ = vp.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = vp.BindEnv("smtp_pass", "SMTP_PASS")
	_ = vp.BindEnv("jwt_secret", "JWT_SECRET")
	_ = vp.BindEnv("make_api_key", "MAKE_API_KEY")
	_ = vp.BindEnv("admin_password", "ADMIN_PASSWORD")

	if v := firstEnv("APP_ENV", "NODE_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.App.HTTPAddr = ":" + v
	}
	if v := os.Getenv("APP_HTTP_ADDR"); v != "" {
		cfg.App.HTTPAddr = v
	}
	if v := os.Getenv("APP_API_PREFIX"); v != "" {
		cfg.App.APIPrefix = v
	}
	if v := os.Getenv("APP_PUBLIC_URL"); v != "" {
		cfg.App.PublicURL = v
	}
	if v := os.Getenv("APP_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.RateLimit = f
		}
	}
	if v := os.Getenv("APP_RATE_BURST"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.RateBurst = f
		}
	}
	if v := os.Getenv("APP_RESET_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.ResetCooldown = d
		}
	}
	if v := os.Getenv("APP_JANITOR_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.JanitorInterval = d
		}
	}

	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := vp.GetString("database_url"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = i
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := vp.GetString("db_password"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("DB_MAX_RETRIES"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Database.MaxRetries = i
		}
	}
	if v := os.Getenv("DB_SKIP_MIGRATIONS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Database.SkipMigrations = b
		}
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := vp.GetString("redis_password"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTPPort = i
		}
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		cfg.Email.SMTPUser = v
	}
	if v := vp.GetString("smtp_pass"); v != "" {
		cfg.Email.SMTPPass = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.Email.FromEmail = v
	}

	if v := vp.GetString("jwt_secret"); v != "" {
		cfg.Security.JWTSecret = v
	}
	if v := os.Getenv("JWT_EXPIRES_IN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Security.AccessTokenTTL = d
		}
	}
	if v := os.Getenv("JWT_REFRESH_EXPIRES_IN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Security.RefreshTokenTTL = d
		}
	}
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Security.BcryptCost = i
		}
	}

	if v := os.Getenv("ADMIN_EMAIL"); v != "" {
		cfg.Security.AdminEmail = v
	}
	if v := vp.GetString("admin_password"); v != "" {
		cfg.Security.AdminPassword = v
	}

	if v := vp.GetString("make_api_key"); v != "" {
		cfg.Make.APIKey = v
	}
	if v := os.Getenv("MAKE_BASE_URL"); v != "" {
		cfg.Make.BaseURL = v
	}
	if v := os.Getenv("MAKE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Make.Timeout = d
		}
	}
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

func parseDuration(name, value string, dst *time.Duration) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s format: %w", name, err)
	}
	*dst = d
	return nil
}

// UnmarshalJSON 自定义 JSON 解析，支持时间Duration字符串。
func (a *AppConfig) UnmarshalJSON(data []byte) error {
	type Alias AppConfig
	aux := &struct {
		ResetCooldown   string `json:"reset_cooldown"`
		JanitorInterval string `json:"janitor_interval"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if err := parseDuration("reset_cooldown", aux.ResetCooldown, &a.ResetCooldown); err != nil {
		return err
	}
	return parseDuration("janitor_interval", aux.JanitorInterval, &a.JanitorInterval)
}

// UnmarshalJSON 自定义 JSON 解析，支持时间Duration字符串。
func (d *DatabaseConfig) UnmarshalJSON(data []byte) error {
	type Alias DatabaseConfig
	aux := &struct {
		RetryBaseDelay string `json:"retry_base_delay"`
		RetryMaxDelay  string `json:"retry_max_delay"`
		*Alias
	}{
		Alias: (*Alias)(d),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if err := parseDuration("retry_base_delay", aux.RetryBaseDelay, &d.RetryBaseDelay); err != nil {
		return err
	}
	return parseDuration("retry_max_delay", aux.RetryMaxDelay, &d.RetryMaxDelay)
}

// UnmarshalJSON 自定义 JSON 解析，支持时间Duration字符串。
func (s *SecurityConfig) UnmarshalJSON(data []byte) error {
	type Alias SecurityConfig
	aux := &struct {
		AccessTokenTTL  string `json:"access_token_ttl"`
		RefreshTokenTTL string `json:"refresh_token_ttl"`
		ResetTokenTTL   string `json:"reset_token_ttl"`
		*Alias
	}{
		Alias: (*Alias)(s),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if err := parseDuration("access_token_ttl", aux.AccessTokenTTL, &s.AccessTokenTTL); err != nil {
		return err
	}
	if err := parseDuration("refresh_token_ttl", aux.RefreshTokenTTL, &s.RefreshTokenTTL); err != nil {
		return err
	}
	return parseDuration("reset_token_ttl", aux.ResetTokenTTL, &s.ResetTokenTTL)
}

// UnmarshalJSON 自定义 JSON 解析，支持时间Duration字符串。
func (m *MakeConfig) UnmarshalJSON(data []byte) error {
	type Alias MakeConfig
	aux := &struct {
		Timeout string `json:"timeout"`
		*Alias
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	return parseDuration("timeout", aux.Timeout, &m.Timeout)
}
