package structured

import "strings"

// ExtractPayload 从模型输出中截取结构化载荷。
//
// 取第一个 '{' 到最后一个 '}'（含两端）之间的子串；两者都存在且起点在终点之前
// 时返回 true，否则表示未找到。字符串字面量中的花括号不做特殊处理，
// 载荷前后的说明文字可以是任意不含花括号的文本。
func ExtractPayload(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}
