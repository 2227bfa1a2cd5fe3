package character

import (
	"fmt"
	"strings"
)

// AttributeKeys 属性键的固定顺序
var AttributeKeys = []string{"STR", "INT", "CON", "WIS"}

// AttributeSet 四项角色属性
type AttributeSet struct {
	STR int `json:"STR" yaml:"STR"`
	INT int `json:"INT" yaml:"INT"`
	CON int `json:"CON" yaml:"CON"`
	WIS int `json:"WIS" yaml:"WIS"`
}

// Clamp 将每个属性独立限制到 [min, max]，要求 min <= max。
func (a AttributeSet) Clamp(min, max int) AttributeSet {
	return AttributeSet{
		STR: clampInt(a.STR, min, max),
		INT: clampInt(a.INT, min, max),
		CON: clampInt(a.CON, min, max),
		WIS: clampInt(a.WIS, min, max),
	}
}

// Total 返回属性总和
func (a AttributeSet) Total() int {
	return a.STR + a.INT + a.CON + a.WIS
}

// Average 返回属性平均值
func (a AttributeSet) Average() float64 {
	return float64(a.Total()) / float64(len(AttributeKeys))
}

// Get 按键读取属性值
func (a AttributeSet) Get(key string) (int, bool) {
	switch key {
	case "STR":
		return a.STR, true
	case "INT":
		return a.INT, true
	case "CON":
		return a.CON, true
	case "WIS":
		return a.WIS, true
	}
	return 0, false
}

func (a AttributeSet) String() string {
	return fmt.Sprintf("STR: %d, INT: %d, CON: %d, WIS: %d", a.STR, a.INT, a.CON, a.WIS)
}

// DetailedString 使用属性定义渲染 "{icon} {name}: {value}" 行；
// 没有定义表时退化为 String()。
func (a AttributeSet) DetailedString(defs *DefinitionTable) string {
	if defs == nil || defs.Len() == 0 {
		return a.String()
	}

	lines := make([]string, 0, len(AttributeKeys))
	for _, key := range AttributeKeys {
		def, ok := defs.Get(key)
		if !ok {
			continue
		}
		v, _ := a.Get(key)
		lines = append(lines, fmt.Sprintf("%s %s: %d", def.Icon, def.Name, v))
	}
	return strings.Join(lines, "\n")
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// =============================================================================
// 📏 属性范围
// =============================================================================

// 范围边界
const (
	MinLowerBound = 1
	MinUpperBound = 100
	MaxLowerBound = 10
	MaxUpperBound = 5000
)

// Range 属性有效区间
type Range struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// DefaultRange 返回默认属性区间
func DefaultRange() Range {
	return Range{Min: 1, Max: 5000}
}

// Normalize 将 Min 限制在 [1,100]、Max 限制在 [10,5000]，并保证 Max >= Min。
func (r Range) Normalize() Range {
	out := Range{
		Min: clampInt(r.Min, MinLowerBound, MinUpperBound),
		Max: clampInt(r.Max, MaxLowerBound, MaxUpperBound),
	}
	if out.Max < out.Min {
		out.Max = out.Min
	}
	return out
}

// Valid 检查区间是否满足 Min >= 1 且 Max >= Min
func (r Range) Valid() bool {
	return r.Min >= 1 && r.Max >= r.Min
}

// Apply 使用该区间校验属性集
func (r Range) Apply(a AttributeSet) AttributeSet {
	return a.Clamp(r.Min, r.Max)
}
