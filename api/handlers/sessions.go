package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/charforge/api"
	"github.com/BaSui01/charforge/character"
	charimage "github.com/BaSui01/charforge/llm/image"
	"github.com/BaSui01/charforge/types"
)

// =============================================================================
// 🧙 角色生成会话 Handler
// =============================================================================

// SessionHandler 生成会话接口处理器
type SessionHandler struct {
	registry *SessionRegistry
	logger   *zap.Logger
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(registry *SessionRegistry, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{registry: registry, logger: logger}
}

// Register 注册路由
func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/sessions", h.HandleCreate)
	mux.HandleFunc("GET /api/v1/sessions", h.HandleList)
	mux.HandleFunc("GET /api/v1/sessions/{id}", h.HandleGet)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", h.HandleDelete)
	mux.HandleFunc("POST /api/v1/sessions/{id}/generate", h.HandleGenerate)
	mux.HandleFunc("POST /api/v1/sessions/{id}/image", h.HandleRegenerateImage)
	mux.HandleFunc("GET /api/v1/sessions/{id}/image", h.HandleImage)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/image-generation", h.HandleImageGeneration)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/attributes", h.HandleAttributes)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/job-class", h.HandleJobClass)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/range", h.HandleRange)
	mux.HandleFunc("POST /api/v1/sessions/{id}/example", h.HandleExample)
}

// HandleCreate 创建会话
// @Summary 创建生成会话
// @Tags 会话
// @Accept json
// @Produce json
// @Param request body api.CreateSessionRequest false "会话配置"
// @Success 201 {object} api.Session
// @Failure 429 {object} Response "会话数已满"
// @Security ApiKeyAuth
// @Router /api/v1/sessions [post]
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.CreateSessionRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	entry, err := h.registry.Create(req)
	if err != nil {
		WriteErr(w, err, h.logger)
		return
	}
	WriteCreated(w, h.view(entry))
}

// HandleList 列出会话
func (h *SessionHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	entries := h.registry.List()
	out := make([]api.Session, 0, len(entries))
	for _, e := range entries {
		out = append(out, h.view(e))
	}
	WriteSuccess(w, out)
}

// HandleGet 查询会话快照
// @Summary 会话状态
// @Tags 会话
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} api.Session
// @Failure 404 {object} Response
// @Router /api/v1/sessions/{id} [get]
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, h.view(entry))
}

// HandleDelete 删除会话
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Delete(r.PathValue("id")); err != nil {
		WriteErr(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGenerate 执行一次完整生成。
// 属性阶段失败返回错误；图像阶段失败时仍返回 200，错误放在 image_error 中。
// @Summary 生成角色
// @Tags 会话
// @Accept json
// @Produce json
// @Param id path string true "会话 ID"
// @Param request body api.GenerateRequest false "角色描述"
// @Success 200 {object} api.GenerateResponse
// @Failure 409 {object} Response "会话正忙"
// @Failure 502 {object} Response "上游响应无法解析"
// @Failure 503 {object} Response "未配置 API Key 或基础数据"
// @Router /api/v1/sessions/{id}/generate [post]
func (h *SessionHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok || !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.GenerateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	out, err := entry.Orchestrator.Generate(r.Context(), req.Description)
	if err != nil {
		WriteErr(w, err, h.logger)
		return
	}

	resp := api.GenerateResponse{FinalState: out.FinalState}
	if out.Result != nil {
		resp.Character = api.NewCharacter(*out.Result, h.definitions())
	}
	if out.Image != nil {
		resp.Image = out.Image.Handle
		resp.Commentary = out.Image.Commentary
		if out.Image.PersistErr != nil {
			resp.ImageWarning = out.Image.PersistErr.Error()
		}
	}
	if out.ImageErr != nil {
		resp.ImageError = errorDetail(out.ImageErr)
	}
	WriteSuccess(w, resp)
}

// HandleRegenerateImage 使用当前职业名重新生成图像
// @Summary 重新生成图像
// @Tags 会话
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} api.ImageResponse
// @Failure 400 {object} Response "图像生成已关闭"
// @Failure 409 {object} Response "会话正忙"
// @Router /api/v1/sessions/{id}/image [post]
func (h *SessionHandler) HandleRegenerateImage(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	img, err := entry.Orchestrator.RegenerateImage(r.Context())
	if err != nil {
		WriteErr(w, err, h.logger)
		return
	}
	resp := api.ImageResponse{Image: img.Handle, MIMEType: img.MIMEType, Commentary: img.Commentary}
	if img.PersistErr != nil {
		resp.ImageWarning = img.PersistErr.Error()
	}
	WriteSuccess(w, resp)
}

// HandleImage 以 PNG 返回当前图像
// @Summary 当前图像
// @Tags 会话
// @Produce png
// @Param id path string true "会话 ID"
// @Success 200 {file} binary
// @Failure 409 {object} Response "尚无图像"
// @Router /api/v1/sessions/{id}/image [get]
func (h *SessionHandler) HandleImage(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	img, _ := entry.Orchestrator.CurrentImage()
	if img == nil {
		WriteErrorMessage(w, http.StatusConflict, types.ErrNoResult, "no image has been generated", h.logger)
		return
	}
	data, err := charimage.EncodePNG(img)
	if err != nil {
		WriteErr(w, err, h.logger)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HandleImageGeneration 切换图像生成开关
func (h *SessionHandler) HandleImageGeneration(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok || !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.ImageGenerationRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	entry.Orchestrator.SetImageGeneration(req.Enabled)
	WriteSuccess(w, h.view(entry))
}

// HandleAttributes 手动设置属性
// @Summary 手动设置属性
// @Tags 手动编辑
// @Accept json
// @Produce json
// @Param id path string true "会话 ID"
// @Param request body api.AttributesRequest true "属性值"
// @Success 200 {object} api.Character
// @Router /api/v1/sessions/{id}/attributes [put]
func (h *SessionHandler) HandleAttributes(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok || !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.AttributesRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	res := entry.Orchestrator.SetAttributes(req.STR, req.INT, req.CON, req.WIS, req.JobClass)
	WriteSuccess(w, api.NewCharacter(res, h.definitions()))
}

// HandleJobClass 修改职业名
// @Summary 修改职业名
// @Tags 手动编辑
// @Accept json
// @Produce json
// @Param id path string true "会话 ID"
// @Param request body api.JobClassRequest true "职业名"
// @Success 200 {object} api.Character
// @Failure 409 {object} Response "尚无角色"
// @Router /api/v1/sessions/{id}/job-class [put]
func (h *SessionHandler) HandleJobClass(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok || !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.JobClassRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.JobClass) == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "job_class is required", h.logger)
		return
	}
	res, err := entry.Orchestrator.SetJobClass(req.JobClass)
	if err != nil {
		WriteErr(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.NewCharacter(res, h.definitions()))
}

// HandleRange 修改属性区间，已有结果会按新区间重新校验
// @Summary 修改属性区间
// @Tags 手动编辑
// @Accept json
// @Produce json
// @Param id path string true "会话 ID"
// @Param request body api.RangeRequest true "区间"
// @Success 200 {object} api.RangeResponse
// @Router /api/v1/sessions/{id}/range [put]
func (h *SessionHandler) HandleRange(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok || !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.RangeRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	rng, res := entry.Orchestrator.SetRange(req.Min, req.Max)
	resp := api.RangeResponse{Range: rng}
	if res != nil {
		resp.Character = api.NewCharacter(*res, h.definitions())
	}
	WriteSuccess(w, resp)
}

// HandleExample 应用角色示例
// @Summary 应用示例
// @Tags 手动编辑
// @Accept json
// @Produce json
// @Param id path string true "会话 ID"
// @Param request body api.ExampleRequest true "示例类型"
// @Success 200 {object} api.Character
// @Failure 404 {object} Response "示例不存在"
// @Router /api/v1/sessions/{id}/example [post]
func (h *SessionHandler) HandleExample(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok || !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.ExampleRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	exampleType := req.Type
	if req.Random {
		ex, found := entry.Orchestrator.RandomExample()
		if !found {
			WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, "no character examples available", h.logger)
			return
		}
		exampleType = ex.Type
	}
	if strings.TrimSpace(exampleType) == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "type or random is required", h.logger)
		return
	}

	res, err := entry.Orchestrator.ApplyExample(exampleType)
	if err != nil {
		WriteErr(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.NewCharacter(res, h.definitions()))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (*SessionEntry, bool) {
	entry, err := h.registry.Get(r.PathValue("id"))
	if err != nil {
		WriteErr(w, err, h.logger)
		return nil, false
	}
	return entry, true
}

func (h *SessionHandler) definitions() *character.DefinitionTable {
	return definitionsOf(h.registry.Catalog())
}

func (h *SessionHandler) view(e *SessionEntry) api.Session {
	o := e.Orchestrator
	s := api.Session{
		ID:           e.ID,
		State:        o.State(),
		Range:        o.Range(),
		ImageEnabled: o.ImageGenerationEnabled(),
		Description:  o.Description(),
		CreatedAt:    e.CreatedAt,
	}
	if res, ok := o.Result(); ok {
		s.Character = api.NewCharacter(res, h.definitions())
	}
	if _, handle := o.CurrentImage(); handle != nil {
		s.Image = handle
	}
	return s
}

func definitionsOf(c *character.Catalog) *character.DefinitionTable {
	if c == nil {
		return nil
	}
	if snap := c.Snapshot(); snap != nil {
		return snap.Definitions
	}
	return nil
}

func errorDetail(err error) *api.ErrorDetail {
	var typed *types.Error
	if errors.As(err, &typed) {
		return &api.ErrorDetail{Code: string(typed.Code), Message: typed.Message}
	}
	return &api.ErrorDetail{Code: string(types.ErrInternalError), Message: err.Error()}
}
