package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/charforge/agent/conversation"
	"github.com/BaSui01/charforge/agent/generation"
	"github.com/BaSui01/charforge/api"
	"github.com/BaSui01/charforge/character"
	"github.com/BaSui01/charforge/types"
)

// =============================================================================
// 🗂️ 会话注册表
// =============================================================================

// SessionEntry 一个会话：生成编排器与对话各一个，互不共享状态
type SessionEntry struct {
	ID           string
	Orchestrator *generation.Orchestrator
	Chat         *conversation.Session
	CreatedAt    time.Time

	detach []func()
}

// ActiveSessionGauge 活跃会话数指标
type ActiveSessionGauge interface {
	SetActiveSessions(n int)
}

// Tracker 在会话创建时订阅编排器事件，返回取消订阅函数
type Tracker func(o *generation.Orchestrator) (unsubscribe func())

// SessionTemplate 新会话的默认配置，ID 字段会被覆盖
type SessionTemplate struct {
	Generation generation.Config
	Chat       conversation.SessionConfig
}

// RegistryOption 注册表选项
type RegistryOption func(*SessionRegistry)

// WithOrchestratorOptions 每个编排器附加的选项
func WithOrchestratorOptions(opts ...generation.Option) RegistryOption {
	return func(r *SessionRegistry) { r.genOpts = append(r.genOpts, opts...) }
}

// WithChatOptions 每个对话附加的选项
func WithChatOptions(opts ...conversation.SessionOption) RegistryOption {
	return func(r *SessionRegistry) { r.chatOpts = append(r.chatOpts, opts...) }
}

// WithTracker 注册事件订阅者（如生成记录）
func WithTracker(t Tracker) RegistryOption {
	return func(r *SessionRegistry) { r.trackers = append(r.trackers, t) }
}

// WithSessionGauge 上报活跃会话数
func WithSessionGauge(g ActiveSessionGauge) RegistryOption {
	return func(r *SessionRegistry) { r.gauge = g }
}

// WithMaxSessions 限制同时存在的会话数，0 表示不限制
func WithMaxSessions(n int) RegistryOption {
	return func(r *SessionRegistry) { r.maxSessions = n }
}

// SessionRegistry 按 ID 管理会话
type SessionRegistry struct {
	client      generation.Client
	catalog     *character.Catalog
	template    SessionTemplate
	genOpts     []generation.Option
	chatOpts    []conversation.SessionOption
	trackers    []Tracker
	gauge       ActiveSessionGauge
	maxSessions int
	logger      *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*SessionEntry
}

// NewSessionRegistry 创建注册表；client 为空时生成与对话请求返回 CONFIGURATION_MISSING
func NewSessionRegistry(client generation.Client, catalog *character.Catalog, template SessionTemplate, logger *zap.Logger, opts ...RegistryOption) *SessionRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &SessionRegistry{
		client:   client,
		catalog:  catalog,
		template: template,
		logger:   logger.With(zap.String("component", "session_registry")),
		sessions: make(map[string]*SessionEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Catalog 基础数据目录
func (r *SessionRegistry) Catalog() *character.Catalog { return r.catalog }

// Create 创建会话
func (r *SessionRegistry) Create(req api.CreateSessionRequest) (*SessionEntry, error) {
	id := uuid.NewString()

	genCfg := r.template.Generation
	genCfg.SessionID = id
	if req.Range != nil {
		genCfg.Range = *req.Range
	}
	if req.ImageEnabled != nil {
		genCfg.ImageEnabled = *req.ImageEnabled
	}
	chatCfg := r.template.Chat
	chatCfg.ID = id

	entry := &SessionEntry{
		ID:           id,
		Orchestrator: generation.New(genCfg, r.client, r.catalog, r.logger, r.genOpts...),
		CreatedAt:    time.Now(),
	}
	if r.client != nil {
		entry.Chat = conversation.NewSession(chatCfg, r.client, r.logger, r.chatOpts...)
	}

	r.mu.Lock()
	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		r.mu.Unlock()
		return nil, types.NewError(types.ErrRateLimited,
			fmt.Sprintf("too many active sessions (max %d)", r.maxSessions)).
			WithHTTPStatus(http.StatusTooManyRequests)
	}
	for _, track := range r.trackers {
		entry.detach = append(entry.detach, track(entry.Orchestrator))
	}
	r.sessions[id] = entry
	n := len(r.sessions)
	r.mu.Unlock()

	r.report(n)
	r.logger.Info("session created", zap.String("session_id", id), zap.Int("active", n))
	return entry, nil
}

// Get 按 ID 查询
func (r *SessionRegistry) Get(id string) (*SessionEntry, error) {
	r.mu.RLock()
	entry, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, types.NewError(types.ErrNotFound, fmt.Sprintf("session %s not found", id)).
			WithHTTPStatus(http.StatusNotFound)
	}
	return entry, nil
}

// Delete 删除会话并取消其事件订阅
func (r *SessionRegistry) Delete(id string) error {
	r.mu.Lock()
	entry, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	n := len(r.sessions)
	r.mu.Unlock()
	if !ok {
		return types.NewError(types.ErrNotFound, fmt.Sprintf("session %s not found", id)).
			WithHTTPStatus(http.StatusNotFound)
	}

	for _, detach := range entry.detach {
		detach()
	}
	r.report(n)
	r.logger.Info("session deleted", zap.String("session_id", id), zap.Int("active", n))
	return nil
}

// List 按创建时间排序的会话 ID
func (r *SessionRegistry) List() []*SessionEntry {
	r.mu.RLock()
	out := make([]*SessionEntry, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Len 活跃会话数
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *SessionRegistry) report(n int) {
	if r.gauge != nil {
		r.gauge.SetActiveSessions(n)
	}
}
