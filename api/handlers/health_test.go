package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/charforge/character"
)

// =============================================================================
// 🧪 测试辅助类型
// =============================================================================

// mockHealthCheck 模拟健康检查
type mockHealthCheck struct {
	name string
	err  error
}

func (m *mockHealthCheck) Name() string {
	return m.name
}

func (m *mockHealthCheck) Check(ctx context.Context) error {
	return m.err
}

// =============================================================================
// 🧪 HealthHandler 测试
// =============================================================================

func TestHealthHandler_HandleHealth(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())

	for _, h := range []http.HandlerFunc{handler.HandleHealth, handler.HandleHealthz} {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var status HealthStatus
		require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
		assert.Equal(t, "healthy", status.Status)
		assert.False(t, status.Timestamp.IsZero())
	}
}

func TestHealthHandler_HandleReady(t *testing.T) {
	ping := func(err error) func(context.Context) error {
		return func(context.Context) error { return err }
	}

	tests := []struct {
		name           string
		setupChecks    func(*HealthHandler)
		expectedStatus int
		checkStatus    func(*testing.T, *HealthStatus)
	}{
		{
			name:           "no checks - ready",
			setupChecks:    func(h *HealthHandler) {},
			expectedStatus: http.StatusOK,
			checkStatus: func(t *testing.T, status *HealthStatus) {
				assert.Equal(t, "healthy", status.Status)
			},
		},
		{
			name: "all checks pass",
			setupChecks: func(h *HealthHandler) {
				h.RegisterCheck(NewDatabaseHealthCheck("database", ping(nil)))
				h.RegisterCheck(NewBaseDataHealthCheck(loadedCatalog()))
			},
			expectedStatus: http.StatusOK,
			checkStatus: func(t *testing.T, status *HealthStatus) {
				assert.Equal(t, "healthy", status.Status)
				assert.Equal(t, "pass", status.Checks["database"].Status)
				assert.Equal(t, "pass", status.Checks["base_data"].Status)
			},
		},
		{
			name: "required check fails",
			setupChecks: func(h *HealthHandler) {
				h.RegisterCheck(NewDatabaseHealthCheck("database", ping(errors.New("connection refused"))))
				h.RegisterCheck(NewBaseDataHealthCheck(character.NewCatalog("", zap.NewNop())))
			},
			expectedStatus: http.StatusServiceUnavailable,
			checkStatus: func(t *testing.T, status *HealthStatus) {
				assert.Equal(t, "unhealthy", status.Status)
				assert.Equal(t, "fail", status.Checks["database"].Status)
				assert.Equal(t, "connection refused", status.Checks["database"].Message)
				assert.Equal(t, "fail", status.Checks["base_data"].Status)
			},
		},
		{
			name: "optional checks only degrade",
			setupChecks: func(h *HealthHandler) {
				h.RegisterCheck(&mockHealthCheck{name: "base", err: nil})
				h.RegisterCheck(NewRedisHealthCheck("redis", ping(errors.New("timeout"))))
				h.RegisterCheck(NewAPIKeyHealthCheck(func() bool { return false }))
			},
			expectedStatus: http.StatusOK,
			checkStatus: func(t *testing.T, status *HealthStatus) {
				assert.Equal(t, "degraded", status.Status)
				assert.Equal(t, "warn", status.Checks["redis"].Status)
				assert.Equal(t, "warn", status.Checks["gemini_api_key"].Status)
				assert.Equal(t, "pass", status.Checks["base"].Status)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(zap.NewNop())
			tt.setupChecks(h)

			w := httptest.NewRecorder()
			h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			var status HealthStatus
			require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
			tt.checkStatus(t, &status)
		})
	}
}

func TestHealthHandler_HandleVersion(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthHandler(zap.NewNop()).Register(mux, "1.0.0", "2026-01-01T00:00:00Z", "abc123")

	w := do(t, mux, http.MethodGet, "/version", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var info map[string]string
	env := decode(t, w, &info)
	assert.True(t, env.Success)
	assert.Equal(t, "1.0.0", info["version"])
	assert.Equal(t, "abc123", info["git_commit"])
}

func TestHealthHandler_ConcurrentChecks(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())
	for i := 0; i < 10; i++ {
		handler.RegisterCheck(&mockHealthCheck{name: string(rune('a' + i))})
	}

	done := make(chan int, 10)
	for i := 0; i < 10; i++ {
		go func() {
			w := httptest.NewRecorder()
			handler.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			done <- w.Code
		}()
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, <-done)
	}
}
