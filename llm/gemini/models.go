package gemini

import "strings"

// DefaultBaseURL Gemini REST 模型端点前缀
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// Operation generateContent 操作名
const Operation = "generateContent"

// 文本模型
const (
	ModelFlashExp = "gemini-2.0-flash-exp"
	ModelFlash    = "gemini-2.0-flash"
	ModelPro15    = "gemini-1.5-pro"
	ModelFlash15  = "gemini-1.5-flash"
	ModelPro10    = "gemini-1.0-pro"
)

// 图像模型
const (
	ModelFlashImage = "gemini-2.0-flash-exp-image-generation"
	ModelImagen3    = "imagen-3.0-generate-001"
)

// 默认模型
const (
	DefaultTextModel  = ModelFlash
	DefaultImageModel = ModelFlashImage
)

// TextModels 文本模型目录
var TextModels = []string{ModelFlashExp, ModelFlash, ModelPro15, ModelFlash15, ModelPro10}

// ImageModels 图像模型目录
var ImageModels = []string{ModelFlashImage, ModelImagen3}

// IsKnownModel 是否为目录中的模型
func IsKnownModel(name string) bool {
	for _, m := range TextModels {
		if m == name {
			return true
		}
	}
	for _, m := range ImageModels {
		if m == name {
			return true
		}
	}
	return false
}

var mimeTypes = map[string]string{
	"mp4":  "video/mp4",
	"mp3":  "audio/mp3",
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
}

// MIMEType 按扩展名返回 MIME 类型，未知扩展名返回 application/octet-stream
func MIMEType(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if mt, ok := mimeTypes[ext]; ok {
		return mt
	}
	return "application/octet-stream"
}
