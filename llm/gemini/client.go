package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/charforge/internal/tlsutil"
	"github.com/BaSui01/charforge/types"
)

const instrumentationName = "github.com/BaSui01/charforge/llm/gemini"

// Config Gemini 客户端配置
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond 客户端节流，<= 0 表示不限制
	RequestsPerSecond float64
	Burst             int
}

// Recorder 请求指标记录器
type Recorder interface {
	RecordGeminiRequest(model, status string, duration time.Duration)
}

// Option 客户端选项
type Option func(*Client)

// WithHTTPClient 替换底层 HTTP 客户端
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRecorder 设置指标记录器
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// Client 调用 generateContent 的无状态客户端。
// 每次 Send 只发起一次 HTTP 调用，失败不重试。
type Client struct {
	cfg      Config
	http     *http.Client
	limiter  *rate.Limiter
	recorder Recorder
	tracer   trace.Tracer
	logger   *zap.Logger
}

// NewClient 创建客户端
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	c := &Client{
		cfg:    cfg,
		http:   tlsutil.SecureHTTPClient(timeout),
		tracer: otel.Tracer(instrumentationName),
		logger: logger.With(zap.String("component", "gemini_client")),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasAPIKey 是否配置了 API Key
func (c *Client) HasAPIKey() bool {
	return strings.TrimSpace(c.cfg.APIKey) != ""
}

// endpoint 构造 {base}/{model}:generateContent?key=...
func (c *Client) endpoint(model string) string {
	return fmt.Sprintf("%s/%s:%s?key=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), model, Operation, url.QueryEscape(c.cfg.APIKey))
}

// Send 向指定模型发送一次请求。
//
// 未配置 API Key 时返回 CONFIGURATION_MISSING 且不发起网络调用；
// 未获得响应体、上游状态码 >= 400 或响应体无法解析时返回 TRANSPORT_ERROR。
func (c *Client) Send(ctx context.Context, model string, req *Request) (*Response, error) {
	if !c.HasAPIKey() {
		return nil, types.NewError(types.ErrConfigurationMissing, "gemini api key is not configured").
			WithProvider(providerName)
	}
	if req == nil || len(req.Contents) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "request has no contents").
			WithHTTPStatus(http.StatusBadRequest).
			WithProvider(providerName)
	}
	if model == "" {
		model = DefaultTextModel
	}

	ctx, span := c.tracer.Start(ctx, "gemini.generate_content",
		trace.WithAttributes(
			attribute.String("llm.provider", providerName),
			attribute.String("llm.model", model),
			attribute.Int("gemini.contents", len(req.Contents)),
		))
	defer span.End()

	start := time.Now()
	resp, err := c.do(ctx, model, req)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("gemini request failed",
			zap.String("model", model),
			zap.Duration("duration", duration),
			zap.Error(err))
	} else {
		span.SetAttributes(attribute.Int("gemini.candidates", len(resp.Candidates)))
		c.logger.Debug("gemini request completed",
			zap.String("model", model),
			zap.Duration("duration", duration),
			zap.Int("candidates", len(resp.Candidates)))
	}
	if c.recorder != nil {
		c.recorder.RecordGeminiRequest(model, status, duration)
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, model string, req *Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, newTransportError("rate limiter wait aborted", err)
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "failed to encode request").
			WithCause(err).
			WithHTTPStatus(http.StatusBadRequest).
			WithProvider(providerName)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(model), bytes.NewReader(payload))
	if err != nil {
		return nil, newTransportError("failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		// url.Error 会带上含 key 的完整 URL，这里只保留底层原因
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, newTransportError("gemini request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, raw := readErrorBody(resp.Body)
		return nil, mapHTTPError(resp.StatusCode, msg, raw)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, newTransportError("failed to decode gemini response", err)
	}
	return &out, nil
}
