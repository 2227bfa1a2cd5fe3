// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 生成服务指标
	geminiRequestsTotal   *prometheus.CounterVec
	geminiRequestDuration *prometheus.HistogramVec

	// 生成序列指标
	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	stateTransitions   *prometheus.CounterVec
	activeSessions     prometheus.Gauge

	// 对话指标
	chatHistoryTokens prometheus.Histogram

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec
	dbQueryDuration   *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器，指标注册到默认 Registry
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.geminiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gemini_requests_total",
			Help:      "Total number of generative service requests",
		},
		[]string{"model", "status"},
	)
	c.geminiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gemini_request_duration_seconds",
			Help:      "Generative service request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"model"},
	)

	c.generationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_stages_total",
			Help:      "Total number of generation stages by outcome",
		},
		[]string{"stage", "outcome"}, // stage: stats, image, manual
	)
	c.generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_stage_duration_seconds",
			Help:      "Generation stage duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)
	c.stateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_state_transitions_total",
			Help:      "Total number of orchestrator state transitions",
		},
		[]string{"from_state", "to_state"},
	)
	c.activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of live generation sessions",
		},
	)

	c.chatHistoryTokens = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_history_tokens",
			Help:      "Estimated token size of chat history sent per request",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 12),
		},
	)

	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)
	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)
	c.dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"database", "operation"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🤖 生成服务与生成序列
// =============================================================================

// RecordGeminiRequest 记录一次生成服务调用，status 为 success 或 error
func (c *Collector) RecordGeminiRequest(model, status string, duration time.Duration) {
	c.geminiRequestsTotal.WithLabelValues(model, status).Inc()
	c.geminiRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordGeneration 记录一个生成阶段的结果
func (c *Collector) RecordGeneration(stage, outcome string, duration time.Duration) {
	c.generationsTotal.WithLabelValues(stage, outcome).Inc()
	c.generationDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordStateTransition 记录状态转换；会话 ID 不作为标签，避免基数膨胀
func (c *Collector) RecordStateTransition(sessionID, from, to string) {
	c.stateTransitions.WithLabelValues(from, to).Inc()
	c.logger.Debug("state transition recorded",
		zap.String("session_id", sessionID),
		zap.String("from", from),
		zap.String("to", to))
}

// SetActiveSessions 设置当前会话数
func (c *Collector) SetActiveSessions(n int) {
	c.activeSessions.Set(float64(n))
}

// RecordHistoryTokens 记录一次对话请求携带的历史 token 数
func (c *Collector) RecordHistoryTokens(tokens int) {
	c.chatHistoryTokens.Observe(float64(tokens))
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// RecordDBQuery 记录数据库查询
func (c *Collector) RecordDBQuery(database, operation string, duration time.Duration) {
	c.dbQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// statusCode 将 HTTP 状态码归类
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
