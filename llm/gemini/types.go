package gemini

// Part 请求/响应中的一个片段：文本或内联二进制数据
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData base64 编码的内联数据
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Content 一轮内容
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// GenerationConfig 生成配置
type GenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
	Temperature        float32  `json:"temperature,omitempty"`
	MaxOutputTokens    int      `json:"maxOutputTokens,omitempty"`
}

// Request generateContent 请求体
type Request struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"system_instruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// Candidate 响应候选
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
	Index        int     `json:"index"`
}

// UsageMetadata token 用量
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// Response generateContent 响应体
type Response struct {
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string         `json:"modelVersion,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// =============================================================================
// 🧱 构造
// =============================================================================

// Response modalities
const (
	ModalityText  = "Text"
	ModalityImage = "Image"
)

// NewTextRequest 创建单条文本请求
func NewTextRequest(text string) *Request {
	return &Request{
		Contents: []Content{{Parts: []Part{{Text: text}}}},
	}
}

// NewMediaRequest 创建文本 + 内联数据请求，data 为 base64 编码
func NewMediaRequest(text, mimeType, data string) *Request {
	return &Request{
		Contents: []Content{{
			Role: "user",
			Parts: []Part{
				{Text: text},
				{InlineData: &InlineData{MimeType: mimeType, Data: data}},
			},
		}},
	}
}

// WithSystemInstruction 设置系统指令，空串时清除
func (r *Request) WithSystemInstruction(text string) *Request {
	if text == "" {
		r.SystemInstruction = nil
		return r
	}
	r.SystemInstruction = &Content{Parts: []Part{{Text: text}}}
	return r
}

// WithResponseModalities 设置响应模态
func (r *Request) WithResponseModalities(modalities ...string) *Request {
	if r.GenerationConfig == nil {
		r.GenerationConfig = &GenerationConfig{}
	}
	r.GenerationConfig.ResponseModalities = modalities
	return r
}

// =============================================================================
// 🔍 读取
// =============================================================================

// Parts 返回第一个候选的所有片段，无候选时为 nil
func (r *Response) Parts() []Part {
	if r == nil || len(r.Candidates) == 0 {
		return nil
	}
	return r.Candidates[0].Content.Parts
}

// FirstText 返回第一个候选中第一个文本片段
func (r *Response) FirstText() (string, bool) {
	for _, p := range r.Parts() {
		if p.Text != "" {
			return p.Text, true
		}
	}
	return "", false
}

// FirstInlineData 返回第一个候选中第一个内联数据片段
func (r *Response) FirstInlineData() (*InlineData, bool) {
	for _, p := range r.Parts() {
		if p.InlineData != nil && p.InlineData.Data != "" {
			return p.InlineData, true
		}
	}
	return nil, false
}
