// Package makeclient 是 Make.com v2 REST API 的轻量客户端。
//
// 所有调用原样返回上游 JSON。错误分为：非 2xx 响应返回 *APIError；
// 网络失败返回 ErrNoResponse 或 ErrTimeout；参数缺失时返回 ErrMissingArgument，请求不会发出。
package makeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"automateeasy/internal/config"
	"automateeasy/internal/pkg/metrics"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL = "https://eu1.make.com/api/v2"
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 4 << 20
)

var (
	ErrNoResponse      = errors.New("no response received from server")
	ErrTimeout         = errors.New("request to Make.com timed out")
	ErrMissingArgument = errors.New("missing argument")
)

// APIError Make.com 返回的非 2xx 响应。
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Make.com API Error (%d): %s", e.Status, e.Message)
}

// Client 使用带 Token 认证和超时的 http.Client 访问 Make.com。
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// New 创建客户端。未配置 API Key 时只记录告警，其它接口照常运行。
func New(cfg config.MakeConfig, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if cfg.APIKey == "" && logger != nil {
		logger.Warn("Make.com API key is not configured; Make.com integration will not work")
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// Configured 是否已配置 API Key。
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

func (c *Client) GetTeams(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, "get_teams", http.MethodGet, "/teams", nil, nil)
}

func (c *Client) GetScenarios(ctx context.Context, teamID string) (json.RawMessage, error) {
	if teamID == "" {
		return nil, fmt.Errorf("%w: team ID is required", ErrMissingArgument)
	}
	return c.do(ctx, "get_scenarios", http.MethodGet, "/teams/"+url.PathEscape(teamID)+"/scenarios", nil, nil)
}

func (c *Client) GetScenario(ctx context.Context, scenarioID string) (json.RawMessage, error) {
	if scenarioID == "" {
		return nil, fmt.Errorf("%w: scenario ID is required", ErrMissingArgument)
	}
	return c.do(ctx, "get_scenario", http.MethodGet, "/scenarios/"+url.PathEscape(scenarioID), nil, nil)
}

// CloneScenario 将场景复制到 teamID，name 为空时使用 "Clone of <id>"。
func (c *Client) CloneScenario(ctx context.Context, scenarioID, teamID, name string) (json.RawMessage, error) {
	if scenarioID == "" || teamID == "" {
		return nil, fmt.Errorf("%w: scenario ID and team ID are required", ErrMissingArgument)
	}
	if name == "" {
		name = "Clone of " + scenarioID
	}
	body := map[string]string{"teamId": teamID, "name": name}
	raw, err := c.do(ctx, "clone_scenario", http.MethodPost, "/scenarios/"+url.PathEscape(scenarioID)+"/clone", nil, body)
	if err == nil && c.logger != nil {
		c.logger.Info("scenario cloned", slog.String("scenario_id", scenarioID), slog.String("team_id", teamID))
	}
	return raw, err
}

// UpdateScenario 以 PATCH 发送 body，body 需可序列化为 JSON。
func (c *Client) UpdateScenario(ctx context.Context, scenarioID string, body any) (json.RawMessage, error) {
	if scenarioID == "" {
		return nil, fmt.Errorf("%w: scenario ID is required", ErrMissingArgument)
	}
	return c.do(ctx, "update_scenario", http.MethodPatch, "/scenarios/"+url.PathEscape(scenarioID), nil, body)
}

func (c *Client) ActivateScenario(ctx context.Context, scenarioID string) (json.RawMessage, error) {
	if scenarioID == "" {
		return nil, fmt.Errorf("%w: scenario ID is required", ErrMissingArgument)
	}
	return c.do(ctx, "activate_scenario", http.MethodPost, "/scenarios/"+url.PathEscape(scenarioID)+"/activate", nil, nil)
}

func (c *Client) DeactivateScenario(ctx context.Context, scenarioID string) (json.RawMessage, error) {
	if scenarioID == "" {
		return nil, fmt.Errorf("%w: scenario ID is required", ErrMissingArgument)
	}
	return c.do(ctx, "deactivate_scenario", http.MethodPost, "/scenarios/"+url.PathEscape(scenarioID)+"/deactivate", nil, nil)
}

// GetScenarioExecutions 原样转发查询参数（分页、状态过滤等）。
func (c *Client) GetScenarioExecutions(ctx context.Context, scenarioID string, query url.Values) (json.RawMessage, error) {
	if scenarioID == "" {
		return nil, fmt.Errorf("%w: scenario ID is required", ErrMissingArgument)
	}
	return c.do(ctx, "get_executions", http.MethodGet, "/scenarios/"+url.PathEscape(scenarioID)+"/executions", query, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any) (json.RawMessage, error) {
	start := time.Now()
	raw, err := c.roundTrip(ctx, method, path, query, body)

	metrics.UpstreamRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.UpstreamRequestsTotal.WithLabelValues(op, outcome(err)).Inc()
	if err != nil && c.logger != nil {
		c.logger.Error("Make.com request failed",
			slog.String("operation", op),
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
	return raw, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrNoResponse, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrNoResponse, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(data) {
		return nil, &APIError{Status: resp.StatusCode, Message: "invalid JSON in response"}
	}
	return json.RawMessage(data), nil
}

// errorMessage 依次取响应体的 message/detail 字段、原始响应体、状态文本。
func errorMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return msg
	}
	return http.StatusText(status)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func outcome(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &apiErr):
		return "api_error"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNoResponse):
		return "no_response"
	default:
		return "error"
	}
}
