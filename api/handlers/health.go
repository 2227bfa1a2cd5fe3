package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/charforge/character"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

// HealthHandler 健康检查处理器
type HealthHandler struct {
	logger *zap.Logger
	checks []HealthCheck
	mu     sync.RWMutex
}

// HealthCheck 健康检查接口
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// optionalCheck 失败时只降级，不影响就绪
type optionalCheck interface {
	Optional() bool
}

// HealthStatus 健康状态响应
type HealthStatus struct {
	Status    string                 `json:"status"` // "healthy", "degraded", "unhealthy"
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status  string `json:"status"` // "pass", "fail", "warn"
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		logger: logger,
		checks: make([]HealthCheck, 0),
	}
}

// RegisterCheck 注册健康检查
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// Register 注册路由
func (h *HealthHandler) Register(mux *http.ServeMux, version, buildTime, gitCommit string) {
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /healthz", h.HandleHealthz)
	mux.HandleFunc("GET /ready", h.HandleReady)
	mux.HandleFunc("GET /readyz", h.HandleReady)
	mux.HandleFunc("GET /version", h.HandleVersion(version, buildTime, gitCommit))
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleHealth 处理 /health 请求（简单健康检查）
// @Summary 健康检查
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "服务正常"
// @Router /health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthStatus{Status: "healthy", Timestamp: time.Now()})
}

// HandleHealthz 处理 /healthz 请求（Kubernetes 活跃度探针）
// @Summary Kubernetes 活跃度探针
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "服务处于活动状态"
// @Router /healthz [get]
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthStatus{Status: "healthy", Timestamp: time.Now()})
}

// HandleReady 处理 /ready 或 /readyz 请求（就绪检查）。
// 必需检查失败返回 503；可选检查失败时状态为 degraded，仍返回 200。
// @Summary 准备情况检查
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "服务已准备就绪"
// @Failure 503 {object} HealthStatus "服务尚未准备好"
// @Router /ready [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	h.mu.RLock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult),
	}

	healthy, degraded := true, false
	for _, check := range checks {
		start := time.Now()
		err := check.Check(ctx)
		latency := time.Since(start)

		result := CheckResult{Status: "pass", Latency: latency.String()}
		if err != nil {
			result.Message = err.Error()
			if oc, ok := check.(optionalCheck); ok && oc.Optional() {
				result.Status = "warn"
				degraded = true
			} else {
				result.Status = "fail"
				healthy = false
			}
			h.logger.Warn("health check failed",
				zap.String("check", check.Name()),
				zap.Error(err),
				zap.Duration("latency", latency),
			)
		}
		status.Checks[check.Name()] = result
	}

	switch {
	case !healthy:
		status.Status = "unhealthy"
		WriteJSON(w, http.StatusServiceUnavailable, status)
	case degraded:
		status.Status = "degraded"
		WriteJSON(w, http.StatusOK, status)
	default:
		WriteJSON(w, http.StatusOK, status)
	}
}

// HandleVersion 处理 /version 请求
// @Summary 版本信息
// @Tags 健康
// @Produce json
// @Success 200 {object} map[string]string "版本信息"
// @Router /version [get]
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, map[string]string{
			"version":    version,
			"build_time": buildTime,
			"git_commit": gitCommit,
		})
	}
}

// =============================================================================
// 🔧 内置健康检查实现
// =============================================================================

// PingCheck 以 ping 函数实现的检查（数据库、Redis）
type PingCheck struct {
	name     string
	ping     func(ctx context.Context) error
	optional bool
}

// NewDatabaseHealthCheck 创建数据库健康检查
func NewDatabaseHealthCheck(name string, ping func(ctx context.Context) error) *PingCheck {
	return &PingCheck{name: name, ping: ping}
}

// NewRedisHealthCheck 创建 Redis 健康检查；对话历史可退回内存，失败只降级
func NewRedisHealthCheck(name string, ping func(ctx context.Context) error) *PingCheck {
	return &PingCheck{name: name, ping: ping, optional: true}
}

func (c *PingCheck) Name() string { return c.name }

func (c *PingCheck) Check(ctx context.Context) error { return c.ping(ctx) }

func (c *PingCheck) Optional() bool { return c.optional }

// BaseDataHealthCheck 基础数据是否已加载
type BaseDataHealthCheck struct {
	catalog *character.Catalog
}

// NewBaseDataHealthCheck 创建基础数据检查
func NewBaseDataHealthCheck(catalog *character.Catalog) *BaseDataHealthCheck {
	return &BaseDataHealthCheck{catalog: catalog}
}

func (c *BaseDataHealthCheck) Name() string { return "base_data" }

func (c *BaseDataHealthCheck) Check(_ context.Context) error {
	if c.catalog == nil || !c.catalog.Loaded() {
		return errors.New("base data is not loaded")
	}
	return nil
}

// APIKeyHealthCheck 生成服务凭据是否已配置；缺失时手动编辑仍可用，只降级
type APIKeyHealthCheck struct {
	configured func() bool
}

// NewAPIKeyHealthCheck 创建凭据检查
func NewAPIKeyHealthCheck(configured func() bool) *APIKeyHealthCheck {
	return &APIKeyHealthCheck{configured: configured}
}

func (c *APIKeyHealthCheck) Name() string { return "gemini_api_key" }

func (c *APIKeyHealthCheck) Check(_ context.Context) error {
	if c.configured == nil || !c.configured() {
		return errors.New("API key is not configured")
	}
	return nil
}

func (c *APIKeyHealthCheck) Optional() bool { return true }
