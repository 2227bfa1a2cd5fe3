package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/charforge/api"
	"github.com/BaSui01/charforge/character"
	"github.com/BaSui01/charforge/types"
)

// =============================================================================
// 📚 基础数据 Handler
// =============================================================================

// CatalogHandler 属性定义与示例语料
type CatalogHandler struct {
	catalog *character.Catalog
	logger  *zap.Logger
}

// NewCatalogHandler 创建基础数据处理器
func NewCatalogHandler(catalog *character.Catalog, logger *zap.Logger) *CatalogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// Register 注册路由
func (h *CatalogHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/attributes", h.HandleAttributes)
	mux.HandleFunc("GET /api/v1/examples", h.HandleExamples)
	mux.HandleFunc("POST /api/v1/base-data/reload", h.HandleReload)
}

// HandleAttributes 属性定义，按文件顺序
// @Summary 属性定义
// @Tags 基础数据
// @Produce json
// @Success 200 {array} character.AttributeDefinition
// @Failure 503 {object} Response "基础数据未加载"
// @Router /api/v1/attributes [get]
func (h *CatalogHandler) HandleAttributes(w http.ResponseWriter, _ *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	WriteSuccess(w, snap.Definitions.All())
}

// HandleExamples 示例语料
// @Summary 角色示例
// @Tags 基础数据
// @Produce json
// @Success 200 {array} api.Example
// @Failure 503 {object} Response "基础数据未加载"
// @Router /api/v1/examples [get]
func (h *CatalogHandler) HandleExamples(w http.ResponseWriter, _ *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	out := make([]api.Example, 0, len(snap.Examples))
	for _, ex := range snap.Examples {
		out = append(out, api.Example{Type: ex.Type, Description: ex.Description, Stats: ex.Stats})
	}
	WriteSuccess(w, out)
}

// HandleReload 重新读取基础数据文件，失败时保留旧数据
// @Summary 重载基础数据
// @Tags 基础数据
// @Produce json
// @Success 200 {object} api.BaseDataSummary
// @Failure 503 {object} Response "重载失败"
// @Security ApiKeyAuth
// @Router /api/v1/base-data/reload [post]
func (h *CatalogHandler) HandleReload(w http.ResponseWriter, _ *http.Request) {
	if h.catalog == nil {
		WriteError(w, types.NewError(types.ErrConfigurationMissing, "base data is not configured"), h.logger)
		return
	}
	if err := h.catalog.Reload(); err != nil {
		WriteError(w, types.NewError(types.ErrConfigurationMissing, "base data reload failed").WithCause(err), h.logger)
		return
	}
	snap := h.catalog.Snapshot()
	WriteSuccess(w, api.BaseDataSummary{Attributes: snap.Definitions.Len(), Examples: len(snap.Examples)})
}

func (h *CatalogHandler) snapshot(w http.ResponseWriter) (*character.BaseData, bool) {
	if h.catalog != nil {
		if snap := h.catalog.Snapshot(); snap != nil {
			return snap, true
		}
	}
	WriteError(w, types.NewError(types.ErrConfigurationMissing, "base data is not loaded"), h.logger)
	return nil, false
}
