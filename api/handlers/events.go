package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/BaSui01/charforge/agent/generation"
)

const (
	eventBufferSize   = 64
	eventWriteTimeout = 5 * time.Second
)

// =============================================================================
// 📡 会话事件流 Handler
// =============================================================================

// EventsHandler 通过 WebSocket 推送编排器事件
type EventsHandler struct {
	registry       *SessionRegistry
	originPatterns []string
	logger         *zap.Logger
}

// NewEventsHandler 创建事件流处理器；originPatterns 为空时只允许同源连接
func NewEventsHandler(registry *SessionRegistry, originPatterns []string, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{
		registry:       registry,
		originPatterns: originPatterns,
		logger:         logger.With(zap.String("component", "events_stream")),
	}
}

// Register 注册路由
func (h *EventsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/sessions/{id}/events", h.HandleEvents)
}

// HandleEvents 升级为 WebSocket 并持续推送事件，直到客户端断开。
// 连接建立后先推送一条当前状态的 state_changed 事件。
// 客户端读取过慢时丢弃事件，不阻塞生成流程。
// @Summary 会话事件流
// @Tags 会话
// @Param id path string true "会话 ID"
// @Success 101 {object} generation.Event
// @Router /api/v1/sessions/{id}/events [get]
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	entry, err := h.registry.Get(r.PathValue("id"))
	if err != nil {
		WriteErr(w, err, h.logger)
		return
	}

	// 长连接不受服务器 WriteTimeout 限制
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	// 不接收客户端消息，CloseRead 在对端关闭时取消 ctx
	ctx := conn.CloseRead(r.Context())

	events := make(chan generation.Event, eventBufferSize)
	unsubscribe := entry.Orchestrator.Subscribe(func(e generation.Event) {
		select {
		case events <- e:
		default:
			h.logger.Warn("event dropped for slow subscriber",
				zap.String("session_id", entry.ID), zap.String("type", string(e.Type)))
		}
	})
	defer unsubscribe()

	state := entry.Orchestrator.State()
	initial := generation.Event{
		Type:      generation.EventStateChanged,
		SessionID: entry.ID,
		From:      state,
		To:        state,
		Timestamp: time.Now(),
	}
	if err := h.write(ctx, conn, initial); err != nil {
		return
	}

	h.logger.Debug("event stream opened", zap.String("session_id", entry.ID))
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case e := <-events:
			if err := h.write(ctx, conn, e); err != nil {
				return
			}
		}
	}
}

func (h *EventsHandler) write(ctx context.Context, conn *websocket.Conn, e generation.Event) error {
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	err := wsjson.Write(ctx, conn, e)
	if err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Debug("event write failed", zap.Error(err))
	}
	return err
}
