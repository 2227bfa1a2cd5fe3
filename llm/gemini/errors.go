package gemini

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/BaSui01/charforge/types"
)

const providerName = "gemini"

// maxErrorBody 诊断用原始响应体的最大保留长度
const maxErrorBody = 64 << 10

// readErrorBody 读取错误响应体，返回可读消息与原始文本
func readErrorBody(body io.Reader) (msg string, raw string) {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return "failed to read error response", ""
	}
	raw = string(data)

	var errResp errorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Sprintf("%s (status: %s)", errResp.Error.Message, errResp.Error.Status), raw
	}
	if raw == "" {
		return http.StatusText(http.StatusBadGateway), raw
	}
	return raw, raw
}

// newTransportError 请求未获得可用响应时的错误。生成链路不做重试。
func newTransportError(message string, cause error) *types.Error {
	return types.NewError(types.ErrTransport, message).
		WithCause(cause).
		WithHTTPStatus(http.StatusBadGateway).
		WithProvider(providerName)
}

// mapHTTPError 将上游错误状态映射为 TransportError，保留原始状态与响应体
func mapHTTPError(status int, msg, raw string) *types.Error {
	return types.NewError(types.ErrTransport, fmt.Sprintf("gemini request failed: status=%d msg=%s", status, msg)).
		WithHTTPStatus(status).
		WithProvider(providerName).
		WithBody(raw)
}
