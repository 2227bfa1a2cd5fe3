package structured

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/BaSui01/charforge/character"
	"github.com/BaSui01/charforge/types"
)

// ParseError 带字段路径的解析错误
type ParseError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseResult 显式的解析结果：Value 与 Errors 二选一。
type ParseResult[T any] struct {
	Value  *T           `json:"value,omitempty"`
	Raw    string       `json:"raw"`
	Errors []ParseError `json:"errors,omitempty"`
}

// IsValid 解析成功且没有错误
func (r *ParseResult[T]) IsValid() bool {
	return r.Value != nil && len(r.Errors) == 0
}

// Err 将解析错误转换为 PARSE_FAILURE，成功时返回 nil
func (r *ParseResult[T]) Err() error {
	if r.IsValid() {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for i := range r.Errors {
		msgs = append(msgs, r.Errors[i].Error())
	}
	if len(msgs) == 0 {
		msgs = append(msgs, "no value")
	}
	return types.NewError(types.ErrParseFailure, "payload shape mismatch: "+strings.Join(msgs, "; "))
}

func failed[T any](raw string, errs ...ParseError) *ParseResult[T] {
	return &ParseResult[T]{Raw: raw, Errors: errs}
}

// ParseGenerationResult 将载荷反序列化为 GenerationResult。
//
// jobClass、stats 及 stats 中的每个属性键都是必需字段；description 缺失时为空串。
// 属性值必须是数字，小数部分被截断。
func ParseGenerationResult(payload string) *ParseResult[character.GenerationResult] {
	type result = character.GenerationResult

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return failed[result](payload, ParseError{Message: fmt.Sprintf("JSON parse error: %v", err)})
	}

	var errs []ParseError
	var out result

	if raw, ok := present(fields, "description"); ok {
		if err := json.Unmarshal(raw, &out.Description); err != nil {
			errs = append(errs, ParseError{Path: "description", Message: "must be a string"})
		}
	}

	if raw, ok := present(fields, "jobClass"); !ok {
		errs = append(errs, ParseError{Path: "jobClass", Message: "required field missing"})
	} else if err := json.Unmarshal(raw, &out.JobClass); err != nil {
		errs = append(errs, ParseError{Path: "jobClass", Message: "must be a string"})
	} else if strings.TrimSpace(out.JobClass) == "" {
		errs = append(errs, ParseError{Path: "jobClass", Message: "must not be empty"})
	}

	if raw, ok := present(fields, "stats"); !ok {
		errs = append(errs, ParseError{Path: "stats", Message: "required field missing"})
	} else {
		stats, statErrs := parseStats(raw)
		out.Stats = stats
		errs = append(errs, statErrs...)
	}

	if len(errs) > 0 {
		return failed[result](payload, errs...)
	}
	return &ParseResult[result]{Value: &out, Raw: payload}
}

func parseStats(raw json.RawMessage) (character.AttributeSet, []ParseError) {
	var set character.AttributeSet

	var stats map[string]json.RawMessage
	if err := json.Unmarshal(raw, &stats); err != nil {
		return set, []ParseError{{Path: "stats", Message: "must be an object"}}
	}

	var errs []ParseError
	targets := map[string]*int{"STR": &set.STR, "INT": &set.INT, "CON": &set.CON, "WIS": &set.WIS}
	for _, key := range character.AttributeKeys {
		path := "stats." + key
		v, ok := present(stats, key)
		if !ok {
			errs = append(errs, ParseError{Path: path, Message: "required field missing"})
			continue
		}
		var f float64
		if err := json.Unmarshal(v, &f); err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			errs = append(errs, ParseError{Path: path, Message: "must be a number"})
			continue
		}
		*targets[key] = toInt(f)
	}
	return set, errs
}

// present 字段存在且不为 null
func present(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

// toInt 截断小数并饱和到 int32 范围，随后的 Clamp 负责区间校验
func toInt(f float64) int {
	switch {
	case f > math.MaxInt32:
		return math.MaxInt32
	case f < math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}

// DecodeGenerationResult 提取并解析模型输出。
// 未找到载荷返回 EXTRACTION_FAILURE，形状不符返回 PARSE_FAILURE。
func DecodeGenerationResult(raw string) (*character.GenerationResult, error) {
	payload, ok := ExtractPayload(raw)
	if !ok {
		return nil, types.NewError(types.ErrExtractionFailure, "no structured payload found in model output")
	}
	res := ParseGenerationResult(payload)
	if err := res.Err(); err != nil {
		return nil, err
	}
	return res.Value, nil
}
