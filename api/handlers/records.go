package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/charforge/api"
	"github.com/BaSui01/charforge/internal/store"
	"github.com/BaSui01/charforge/types"
)

// RecordReader 生成记录查询
type RecordReader interface {
	Get(ctx context.Context, id string) (*store.GenerationRecord, error)
	List(ctx context.Context, opts store.ListOptions) ([]store.GenerationRecord, int64, error)
}

// RecordsHandler 生成记录接口
type RecordsHandler struct {
	records RecordReader
	logger  *zap.Logger
}

// NewRecordsHandler 创建记录处理器
func NewRecordsHandler(records RecordReader, logger *zap.Logger) *RecordsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordsHandler{records: records, logger: logger}
}

// Register 注册路由
func (h *RecordsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/records", h.HandleList)
	mux.HandleFunc("GET /api/v1/records/{id}", h.HandleGet)
}

// HandleList 分页查询，按创建时间倒序
// @Summary 生成记录
// @Tags 记录
// @Produce json
// @Param session_id query string false "会话 ID"
// @Param job_class query string false "职业名"
// @Param limit query int false "每页条数，默认 20，最大 200"
// @Param offset query int false "偏移"
// @Success 200 {object} api.RecordList
// @Router /api/v1/records [get]
func (h *RecordsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := store.ListOptions{
		SessionID: q.Get("session_id"),
		JobClass:  q.Get("job_class"),
	}
	var ok bool
	if opts.Limit, ok = h.intParam(w, q.Get("limit"), "limit"); !ok {
		return
	}
	if opts.Offset, ok = h.intParam(w, q.Get("offset"), "offset"); !ok {
		return
	}
	opts = opts.Normalized()

	recs, total, err := h.records.List(r.Context(), opts)
	if err != nil {
		WriteErr(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.RecordList{Records: recs, Total: total, Limit: opts.Limit, Offset: opts.Offset})
}

// HandleGet 查询单条记录
// @Summary 生成记录详情
// @Tags 记录
// @Produce json
// @Param id path string true "记录 ID"
// @Success 200 {object} store.GenerationRecord
// @Failure 404 {object} Response
// @Router /api/v1/records/{id} [get]
func (h *RecordsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.records.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteErr(w, err, h.logger)
		return
	}
	WriteSuccess(w, rec)
}

func (h *RecordsHandler) intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, name+" must be an integer", h.logger)
		return 0, false
	}
	return v, true
}
