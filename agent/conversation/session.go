package conversation

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/charforge/llm/gemini"
	"github.com/BaSui01/charforge/types"
)

// Client 会话使用的生成服务客户端
type Client interface {
	Send(ctx context.Context, model string, req *gemini.Request) (*gemini.Response, error)
}

// SessionConfig 会话配置
type SessionConfig struct {
	ID                string
	Model             string
	SystemInstruction string
}

// SessionOption 会话选项
type SessionOption func(*Session)

// WithStore 设置历史持久化
func WithStore(store Store) SessionOption {
	return func(s *Session) { s.store = store }
}

// WithTokenCounter 设置 token 计数器
func WithTokenCounter(c *TokenCounter) SessionOption {
	return func(s *Session) { s.counter = c }
}

// TokenRecorder 记录每次请求携带的历史 token 数
type TokenRecorder interface {
	RecordHistoryTokens(tokens int)
}

// WithTokenRecorder 设置 token 指标记录器，需同时设置 TokenCounter
func WithTokenRecorder(r TokenRecorder) SessionOption {
	return func(s *Session) { s.recorder = r }
}

// WithHistory 以已有历史初始化会话
func WithHistory(h *History) SessionOption {
	return func(s *Session) {
		if h != nil {
			s.history = h
		}
	}
}

// Session 一个参与者的多轮对话。
//
// 用户轮次在调用前追加，模型轮次只在调用成功且响应含文本时追加；
// 同一会话的调用串行执行。
type Session struct {
	cfg      SessionConfig
	client   Client
	store    Store
	counter  *TokenCounter
	recorder TokenRecorder
	logger   *zap.Logger

	mu      sync.Mutex
	history *History
}

// NewSession 创建会话
func NewSession(cfg SessionConfig, client Client, logger *zap.Logger, opts ...SessionOption) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = gemini.DefaultTextModel
	}
	s := &Session{
		cfg:     cfg,
		client:  client,
		history: NewHistory(),
		logger:  logger.With(zap.String("component", "conversation"), zap.String("session_id", cfg.ID)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RestoreSession 从存储加载历史并创建会话
func RestoreSession(ctx context.Context, cfg SessionConfig, client Client, store Store, logger *zap.Logger, opts ...SessionOption) (*Session, error) {
	turns, err := store.Load(ctx, cfg.ID)
	if err != nil {
		return nil, err
	}
	opts = append([]SessionOption{WithStore(store), WithHistory(NewHistory(turns...))}, opts...)
	return NewSession(cfg, client, logger, opts...), nil
}

// ID 会话 ID
func (s *Session) ID() string { return s.cfg.ID }

// History 返回当前历史快照
func (s *Session) History() *History {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history
}

// Send 发送一条聊天消息，以完整历史作为上下文，返回模型回复
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendLocked(ctx, UserTurn(text))
	tokens := -1
	if s.counter != nil {
		tokens = s.counter.CountTurns(s.history.AsContext())
		if s.recorder != nil {
			s.recorder.RecordHistoryTokens(tokens)
		}
	}

	resp, err := s.client.Send(ctx, s.cfg.Model, s.requestLocked())
	if err != nil {
		return "", err
	}
	reply, ok := resp.FirstText()
	if !ok {
		return "", types.NewError(types.ErrNoResult, "no text found in model response")
	}

	s.appendLocked(ctx, ModelTurn(reply))
	if tokens >= 0 {
		s.logger.Debug("conversation updated",
			zap.Int("turns", s.history.Len()),
			zap.Int("request_tokens", tokens))
	}
	return reply, nil
}

// Ask 发送不带历史的一次性提示词
func (s *Session) Ask(ctx context.Context, prompt string) (string, error) {
	return s.oneShot(ctx, gemini.NewTextRequest(prompt))
}

// SendMedia 发送文本与内联媒体数据，不计入历史
func (s *Session) SendMedia(ctx context.Context, prompt, mimeType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", types.NewError(types.ErrInvalidRequest, "media data is empty")
	}
	req := gemini.NewMediaRequest(prompt, mimeType, base64.StdEncoding.EncodeToString(data))
	return s.oneShot(ctx, req)
}

func (s *Session) oneShot(ctx context.Context, req *gemini.Request) (string, error) {
	resp, err := s.client.Send(ctx, s.cfg.Model, req)
	if err != nil {
		return "", err
	}
	text, ok := resp.FirstText()
	if !ok {
		return "", types.NewError(types.ErrNoResult, "no text found in model response")
	}
	return text, nil
}

func (s *Session) appendLocked(ctx context.Context, turn Turn) {
	s.history = s.history.Append(turn)
	if s.store == nil {
		return
	}
	if err := s.store.Append(ctx, s.cfg.ID, turn); err != nil {
		s.logger.Warn("failed to persist turn", zap.String("role", string(turn.Role)), zap.Error(err))
	}
}

// requestLocked 将历史转换为请求；system 轮次并入系统指令
func (s *Session) requestLocked() *gemini.Request {
	var system []string
	if s.cfg.SystemInstruction != "" {
		system = append(system, s.cfg.SystemInstruction)
	}

	req := &gemini.Request{}
	for _, t := range s.history.AsContext() {
		if t.Role == types.RoleSystem {
			system = append(system, t.Text)
			continue
		}
		req.Contents = append(req.Contents, gemini.Content{
			Role:  string(t.Role),
			Parts: []gemini.Part{{Text: t.Text}},
		})
	}
	return req.WithSystemInstruction(strings.Join(system, "\n"))
}
