package api

import (
	"time"

	"github.com/BaSui01/charforge/agent/generation"
	"github.com/BaSui01/charforge/character"
	charimage "github.com/BaSui01/charforge/llm/image"
)

// =============================================================================
// 会话类型
// =============================================================================

// CreateSessionRequest 创建生成会话。
// @Description 未指定时使用服务端配置的区间与图像开关
type CreateSessionRequest struct {
	// 属性区间，越界值会被修正
	Range *character.Range `json:"range,omitempty"`
	// 是否在属性生成后继续生成图像
	ImageEnabled *bool `json:"image_enabled,omitempty" example:"true"`
}

// Character 已发布的角色结果及派生值
type Character struct {
	Description string                 `json:"description" example:"불을 다루는 마법사"`
	JobClass    string                 `json:"job_class" example:"화염술사"`
	Stats       character.AttributeSet `json:"stats"`
	Total       int                    `json:"total" example:"240"`
	Average     float64                `json:"average" example:"60"`
	// 按属性定义渲染的多行文本（图标 名称: 值）
	Detailed string `json:"detailed,omitempty"`
}

// NewCharacter 由生成结果构造响应，defs 为空时不渲染 Detailed
func NewCharacter(res character.GenerationResult, defs *character.DefinitionTable) *Character {
	c := &Character{
		Description: res.Description,
		JobClass:    res.JobClass,
		Stats:       res.Stats,
		Total:       res.Stats.Total(),
		Average:     res.Stats.Average(),
	}
	if defs != nil {
		c.Detailed = res.Stats.DetailedString(defs)
	}
	return c
}

// Session 会话状态快照
type Session struct {
	ID           string            `json:"id" example:"5f0c2d1e-8a4b-4c61-9d0e-2b7f6a1c3e55"`
	State        generation.State  `json:"state" example:"idle"`
	Range        character.Range   `json:"range"`
	ImageEnabled bool              `json:"image_enabled"`
	Description  string            `json:"description,omitempty"`
	Character    *Character        `json:"character,omitempty"`
	Image        *charimage.Handle `json:"image,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// GenerateRequest 生成请求，描述为空时使用默认描述
type GenerateRequest struct {
	Description string `json:"description" example:"불을 다루는 마법사"`
}

// GenerateResponse 一次完整生成的结果
type GenerateResponse struct {
	Character  *Character        `json:"character,omitempty"`
	FinalState generation.State  `json:"final_state" example:"image_ready"`
	Image      *charimage.Handle `json:"image,omitempty"`
	Commentary []string          `json:"commentary,omitempty"`
	// 图像阶段失败时的错误码，属性结果仍然有效
	ImageError *ErrorDetail `json:"image_error,omitempty"`
	// 图像已生成但保存失败
	ImageWarning string `json:"image_warning,omitempty"`
}

// ErrorDetail 嵌入在成功响应中的错误信息
type ErrorDetail struct {
	Code    string `json:"code" example:"DECODE_FAILURE"`
	Message string `json:"message"`
}

// ImageResponse 重新生成图像的结果
type ImageResponse struct {
	Image        *charimage.Handle `json:"image,omitempty"`
	MIMEType     string            `json:"mime_type" example:"image/png"`
	Commentary   []string          `json:"commentary,omitempty"`
	ImageWarning string            `json:"image_warning,omitempty"`
}

// AttributesRequest 手动设置属性
type AttributesRequest struct {
	STR      int    `json:"STR" example:"100"`
	INT      int    `json:"INT" example:"1"`
	CON      int    `json:"CON" example:"40"`
	WIS      int    `json:"WIS" example:"40"`
	JobClass string `json:"job_class,omitempty" example:"전사"`
}

// JobClassRequest 修改职业名
type JobClassRequest struct {
	JobClass string `json:"job_class" example:"성기사"`
}

// RangeRequest 修改属性区间
type RangeRequest struct {
	Min int `json:"min" example:"1"`
	Max int `json:"max" example:"100"`
}

// RangeResponse 修正后的区间与重新校验的结果（无结果时为空）
type RangeResponse struct {
	Range     character.Range `json:"range"`
	Character *Character      `json:"character,omitempty"`
}

// ExampleRequest 应用示例，Random 为 true 时忽略 Type
type ExampleRequest struct {
	Type   string `json:"type,omitempty" example:"전사"`
	Random bool   `json:"random,omitempty"`
}

// ImageGenerationRequest 图像生成开关
type ImageGenerationRequest struct {
	Enabled bool `json:"enabled"`
}

// =============================================================================
// 对话类型
// =============================================================================

// ChatRequest 对话请求；Data 为 base64 编码的附件，需同时提供 MIMEType 或 FileName
type ChatRequest struct {
	Message  string `json:"message" example:"이 캐릭터의 배경 이야기를 들려줘"`
	OneShot  bool   `json:"one_shot,omitempty"`
	Data     string `json:"data,omitempty"`
	MIMEType string `json:"mime_type,omitempty" example:"image/png"`
	FileName string `json:"file_name,omitempty" example:"hero.png"`
}

// ChatResponse 对话回复
type ChatResponse struct {
	Reply string `json:"reply"`
	// 当前历史轮数
	Turns int `json:"turns"`
}

// =============================================================================
// 基础数据与记录
// =============================================================================

// Example 角色示例
type Example struct {
	Type        string                 `json:"type" example:"전사"`
	Description string                 `json:"description"`
	Stats       character.AttributeSet `json:"stats"`
}

// BaseDataSummary 重载后的基础数据摘要
type BaseDataSummary struct {
	Attributes int `json:"attributes" example:"4"`
	Examples   int `json:"examples" example:"6"`
}

// RecordList 分页的生成记录
type RecordList struct {
	Records any   `json:"records"`
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
}
