package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/charforge/internal/metrics"
	"github.com/BaSui01/charforge/types"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ok"))
})

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) types.ErrorCode {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code types.ErrorCode `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	assert.False(t, body.Success)
	return body.Error.Code
}

func TestSecurityHeaders(t *testing.T) {
	w := serve(SecurityHeaders()(okHandler), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	serve(Chain(okHandler, mark("outer"), mark("inner")), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestRequestID(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = types.RequestID(r.Context())
	})
	h := Chain(inner, SecurityHeaders(), RequestID())

	w := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Regexp(t, `^req-[0-9a-f]{32}$`, w.Header().Get("X-Request-ID"))
	assert.Equal(t, w.Header().Get("X-Request-ID"), seen)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "client-42")
	w = serve(h, r)
	assert.Equal(t, "client-42", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "client-42", seen)
}

func TestRecovery(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })

	w := serve(Recovery(zap.NewNop())(panicking), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, types.ErrInternalError, errorCode(t, w))
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(okHandler)

	t.Run("allowed origin", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/examples", nil)
		r.Header.Set("Origin", "https://app.example.com")
		w := serve(h, r)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("allowed preflight", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
		r.Header.Set("Origin", "https://app.example.com")
		w := serve(h, r)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("unknown origin", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/examples", nil)
		r.Header.Set("Origin", "https://evil.example.com")
		w := serve(h, r)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown preflight", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
		r.Header.Set("Origin", "https://evil.example.com")
		w := serve(h, r)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("no origins configured", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
		r.Header.Set("Origin", "https://app.example.com")
		w := serve(CORS(nil)(okHandler), r)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestAPIKeyAuth(t *testing.T) {
	h := APIKeyAuth([]string{"secret"}, skipAuthPaths, zap.NewNop())(okHandler)

	tests := []struct {
		name   string
		path   string
		header string
		ws     bool
		want   int
	}{
		{name: "missing key", path: "/api/v1/sessions", want: http.StatusUnauthorized},
		{name: "wrong key", path: "/api/v1/sessions", header: "nope", want: http.StatusUnauthorized},
		{name: "header key", path: "/api/v1/sessions", header: "secret", want: http.StatusOK},
		{name: "health skipped", path: "/health", want: http.StatusOK},
		{name: "query key on plain request", path: "/api/v1/sessions?api_key=secret", want: http.StatusUnauthorized},
		{name: "query key on websocket", path: "/api/v1/sessions/x/events?api_key=secret", ws: true, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				r.Header.Set("X-API-Key", tt.header)
			}
			if tt.ws {
				r.Header.Set("Upgrade", "websocket")
			}
			w := serve(h, r)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, types.ErrUnauthorized, errorCode(t, w))
			}
		})
	}
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJWTAuth(t *testing.T) {
	var user string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ = types.UserID(r.Context())
	})
	h := JWTAuth("hmac-secret", "charforge", skipAuthPaths, zap.NewNop())(inner)
	exp := time.Now().Add(time.Hour).Unix()

	request := func(token string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		return serve(h, r)
	}

	t.Run("valid with user_id", func(t *testing.T) {
		w := request(signToken(t, "hmac-secret", jwt.MapClaims{"iss": "charforge", "user_id": "u-1", "exp": exp}))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "u-1", user)
	})

	t.Run("subject fallback", func(t *testing.T) {
		w := request(signToken(t, "hmac-secret", jwt.MapClaims{"iss": "charforge", "sub": "u-2", "exp": exp}))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "u-2", user)
	})

	t.Run("missing header", func(t *testing.T) {
		w := request("")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, types.ErrUnauthorized, errorCode(t, w))
	})

	t.Run("wrong secret", func(t *testing.T) {
		w := request(signToken(t, "other", jwt.MapClaims{"iss": "charforge", "exp": exp}))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		w := request(signToken(t, "hmac-secret", jwt.MapClaims{"iss": "someone", "exp": exp}))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired", func(t *testing.T) {
		w := request(signToken(t, "hmac-secret", jwt.MapClaims{"iss": "charforge", "exp": time.Now().Add(-time.Minute).Unix()}))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("skip path", func(t *testing.T) {
		w := serve(h, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimiter(ctx, 1, 2, zap.NewNop())(okHandler)

	request := func(addr string) int {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/examples", nil)
		r.RemoteAddr = addr
		return serve(h, r).Code
	}

	assert.Equal(t, http.StatusOK, request("10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, request("10.0.0.1:1235"))
	assert.Equal(t, http.StatusTooManyRequests, request("10.0.0.1:1236"))
	// 其他 IP 拥有独立的令牌桶
	assert.Equal(t, http.StatusOK, request("10.0.0.2:1234"))
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/health", "/health"},
		{"/api/v1/sessions", "/api/v1/sessions"},
		{"/api/v1/sessions/9b2f64a8-3c1d-4e5f-8a7b-0c1d2e3f4a5b/generate", "/api/v1/sessions/:id/generate"},
		{"/api/v1/records/42", "/api/v1/records/:id"},
		{"/api/v1/sessions/abc/chat", "/api/v1/sessions/abc/chat"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.in), tt.in)
	}
}

var (
	collectorOnce sync.Once
	testCollector *metrics.Collector
)

// sharedCollector 指标注册到默认 Registry，同一命名空间只能创建一次
func sharedCollector() *metrics.Collector {
	collectorOnce.Do(func() {
		testCollector = metrics.NewCollector("charforge_cmd_test", zap.NewNop())
	})
	return testCollector
}

func TestMetricsMiddleware_PassesThrough(t *testing.T) {
	h := Chain(okHandler, MetricsMiddleware(sharedCollector()), RequestLogger(zap.NewNop()), OTelTracing())

	w := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/9b2f64a8-3c1d-4e5f-8a7b-0c1d2e3f4a5b", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
