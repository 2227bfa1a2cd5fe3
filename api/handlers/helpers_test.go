package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/charforge/agent/conversation"
	"github.com/BaSui01/charforge/agent/generation"
	"github.com/BaSui01/charforge/character"
	"github.com/BaSui01/charforge/llm/gemini"
	charimage "github.com/BaSui01/charforge/llm/image"
)

// =============================================================================
// 🧪 测试辅助类型
// =============================================================================

// scriptedClient 按顺序返回预设响应，并记录收到的请求
type scriptedClient struct {
	mu       sync.Mutex
	replies  []*gemini.Response
	errs     []error
	requests []*gemini.Request
}

func (c *scriptedClient) Send(_ context.Context, _ string, req *gemini.Request) (*gemini.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(c.replies) == 0 {
		return reply(), nil
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r, nil
}

func (c *scriptedClient) lastRequest() *gemini.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return nil
	}
	return c.requests[len(c.requests)-1]
}

func reply(parts ...gemini.Part) *gemini.Response {
	return &gemini.Response{Candidates: []gemini.Candidate{{Content: gemini.Content{Role: "model", Parts: parts}}}}
}

func textReply(text string) *gemini.Response {
	return reply(gemini.Part{Text: text})
}

const mageJSON = `{"description":"불을 다루는 마법사","jobClass":"화염술사","stats":{"STR":10,"INT":95,"CON":20,"WIS":70}}`

func pngPayload(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

type pathStore struct{}

func (pathStore) Persist(_ image.Image, hint string) (charimage.Handle, error) {
	return charimage.Handle{Path: "generated/" + hint + ".png", Name: hint + ".png", Width: 2, Height: 2}, nil
}

type gaugeSink struct {
	mu   sync.Mutex
	last int
}

func (g *gaugeSink) SetActiveSessions(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = n
}

func (g *gaugeSink) value() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

func loadedCatalog() *character.Catalog {
	c := character.NewCatalog("", zap.NewNop())
	c.Replace(&character.BaseData{
		Definitions: character.NewDefinitionTable([]character.AttributeDefinition{
			{Key: "STR", Name: "힘", Icon: "💪"},
			{Key: "INT", Name: "지능", Icon: "🧠"},
			{Key: "CON", Name: "체력", Icon: "❤️"},
			{Key: "WIS", Name: "지혜", Icon: "🔮"},
		}),
		Examples: []character.CharacterExample{
			{Type: "전사", Description: "근접 전투의 달인", Stats: character.AttributeSet{STR: 18, INT: 8, CON: 16, WIS: 10}},
		},
	})
	return c
}

// newTestRegistry 默认区间 1-100、关闭图像生成
func newTestRegistry(client generation.Client, opts ...RegistryOption) *SessionRegistry {
	tmpl := SessionTemplate{
		Generation: generation.Config{Range: character.Range{Min: 1, Max: 100}},
		Chat:       conversation.SessionConfig{Model: gemini.DefaultTextModel},
	}
	opts = append([]RegistryOption{WithOrchestratorOptions(generation.WithImageStore(pathStore{}))}, opts...)
	return NewSessionRegistry(client, loadedCatalog(), tmpl, zap.NewNop(), opts...)
}

func newTestMux(registry *SessionRegistry) *http.ServeMux {
	mux := http.NewServeMux()
	NewSessionHandler(registry, zap.NewNop()).Register(mux)
	NewChatHandler(registry, zap.NewNop()).Register(mux)
	NewEventsHandler(registry, nil, zap.NewNop()).Register(mux)
	return mux
}

// envelope 解码统一响应，Data 延迟解析
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorInfo      `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if dst != nil {
		require.NoError(t, json.Unmarshal(env.Data, dst))
	}
	return env
}
