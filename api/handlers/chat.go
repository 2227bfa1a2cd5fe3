package handlers

import (
	"encoding/base64"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/charforge/agent/conversation"
	"github.com/BaSui01/charforge/api"
	"github.com/BaSui01/charforge/llm/gemini"
	"github.com/BaSui01/charforge/types"
)

// =============================================================================
// 💬 对话接口 Handler
// =============================================================================

// ChatHandler 会话内的自由对话，与角色生成互不影响
type ChatHandler struct {
	registry *SessionRegistry
	logger   *zap.Logger
}

// NewChatHandler 创建对话处理器
func NewChatHandler(registry *SessionRegistry, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{registry: registry, logger: logger}
}

// Register 注册路由
func (h *ChatHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/sessions/{id}/chat", h.HandleChat)
	mux.HandleFunc("GET /api/v1/sessions/{id}/chat/history", h.HandleHistory)
}

// HandleChat 发送消息。
// 带附件或 one_shot 的请求不使用也不写入历史。
// @Summary 对话
// @Tags 对话
// @Accept json
// @Produce json
// @Param id path string true "会话 ID"
// @Param request body api.ChatRequest true "消息"
// @Success 200 {object} api.ChatResponse
// @Failure 400 {object} Response "无效请求"
// @Failure 502 {object} Response "上游错误"
// @Security ApiKeyAuth
// @Router /api/v1/sessions/{id}/chat [post]
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	chat, ok := h.chat(w, r)
	if !ok || !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.ChatRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := validateChatRequest(&req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	var (
		reply string
		err   error
	)
	switch {
	case req.Data != "":
		data, decErr := base64.StdEncoding.DecodeString(req.Data)
		if decErr != nil {
			WriteError(w, types.NewError(types.ErrInvalidRequest, "data must be base64 encoded").
				WithCause(decErr).WithHTTPStatus(http.StatusBadRequest), h.logger)
			return
		}
		reply, err = chat.SendMedia(r.Context(), req.Message, mediaType(req), data)
	case req.OneShot:
		reply, err = chat.Ask(r.Context(), req.Message)
	default:
		reply, err = chat.Send(r.Context(), req.Message)
	}
	if err != nil {
		WriteErr(w, err, h.logger)
		return
	}

	WriteSuccess(w, api.ChatResponse{Reply: reply, Turns: chat.History().Len()})
}

// HandleHistory 返回对话历史
// @Summary 对话历史
// @Tags 对话
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {array} conversation.Turn
// @Router /api/v1/sessions/{id}/chat/history [get]
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	chat, ok := h.chat(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, chat.History().AsContext())
}

func (h *ChatHandler) chat(w http.ResponseWriter, r *http.Request) (*conversation.Session, bool) {
	entry, err := h.registry.Get(r.PathValue("id"))
	if err != nil {
		WriteErr(w, err, h.logger)
		return nil, false
	}
	if entry.Chat == nil {
		WriteError(w, types.NewError(types.ErrConfigurationMissing, "chat client is not configured"), h.logger)
		return nil, false
	}
	return entry.Chat, true
}

func validateChatRequest(req *api.ChatRequest) *types.Error {
	if strings.TrimSpace(req.Message) == "" && req.Data == "" {
		return types.NewError(types.ErrInvalidRequest, "message is required").
			WithHTTPStatus(http.StatusBadRequest)
	}
	if req.Data != "" && req.MIMEType == "" && req.FileName == "" {
		return types.NewError(types.ErrInvalidRequest, "mime_type or file_name is required with data").
			WithHTTPStatus(http.StatusBadRequest)
	}
	return nil
}

// mediaType 显式 MIME 优先，否则按文件扩展名推断
func mediaType(req api.ChatRequest) string {
	if req.MIMEType != "" {
		return req.MIMEType
	}
	return gemini.MIMEType(filepath.Ext(req.FileName))
}
