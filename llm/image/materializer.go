package image

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/BaSui01/charforge/types"
)

// timestampLayout 文件名中的时间戳格式（yyyyMMdd_HHmmss）
const timestampLayout = "20060102_150405"

// Handle 已持久化图像的引用
type Handle struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CreatedAt time.Time `json:"created_at"`
}

// Decode 解码 base64 编码的 PNG/JPEG 数据
func Decode(payload string) (image.Image, error) {
	payload = strings.TrimSpace(payload)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
	}
	if err != nil {
		return nil, types.NewError(types.ErrDecodeFailure, "image payload is not valid base64").WithCause(err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, types.NewError(types.ErrDecodeFailure, "image payload is not a decodable raster").WithCause(err)
	}
	return img, nil
}

// EncodePNG 将图像编码为 PNG 字节
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Materializer 将解码后的图像写入持久化目录
type Materializer struct {
	dir    string
	now    func() time.Time
	logger *zap.Logger
}

// NewMaterializer 创建 Materializer，目录在首次写入时创建
func NewMaterializer(dir string, logger *zap.Logger) *Materializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Materializer{
		dir:    dir,
		now:    time.Now,
		logger: logger.With(zap.String("component", "image_materializer")),
	}
}

// Dir 持久化目录
func (m *Materializer) Dir() string { return m.dir }

// FileName 返回 character_{nameHint}_{yyyyMMdd_HHmmss}.png
func FileName(nameHint string, at time.Time) string {
	return fmt.Sprintf("character_%s_%s.png", sanitize(nameHint), at.Format(timestampLayout))
}

// Persist 以 PNG 格式写入图像
func (m *Materializer) Persist(img image.Image, nameHint string) (Handle, error) {
	if img == nil {
		return Handle{}, fmt.Errorf("nil image")
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return Handle{}, fmt.Errorf("failed to create image dir: %w", err)
	}

	at := m.now()
	name := FileName(nameHint, at)
	path := filepath.Join(m.dir, name)

	data, err := EncodePNG(img)
	if err != nil {
		return Handle{}, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Handle{}, fmt.Errorf("failed to write image: %w", err)
	}

	b := img.Bounds()
	h := Handle{Path: path, Name: name, Width: b.Dx(), Height: b.Dy(), CreatedAt: at}
	m.logger.Info("character image saved", zap.String("path", path), zap.Int("bytes", len(data)))
	return h, nil
}

// sanitize 去掉文件名中不安全的字符，保留字母（含韩文）与数字
func sanitize(hint string) string {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-':
			return r
		default:
			return '_'
		}
	}, hint)
}
