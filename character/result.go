package character

import "fmt"

// 手动操作使用的默认文案
const (
	DefaultDescription       = "판타지 RPG 캐릭터"
	DefaultImageJobClass     = "판타지 캐릭터"
	UndecidedJobClass        = "미정"
	ManualDescription        = "수동으로 설정된 캐릭터"
	JobClassChangedMessage   = "직업이 변경되었습니다."
	rangeAdjustedDescription = "범위 조정됨 (%d-%d)"
)

// GenerationResult 一次生成（或手动覆盖）得到的完整结果
type GenerationResult struct {
	Description string       `json:"description"`
	JobClass    string       `json:"jobClass"`
	Stats       AttributeSet `json:"stats"`
}

// Validated 返回经区间校验后的副本
func (g GenerationResult) Validated(r Range) GenerationResult {
	g.Stats = r.Apply(g.Stats)
	return g
}

// RangeAdjustedDescription 区间调整后的描述文案
func RangeAdjustedDescription(r Range) string {
	return fmt.Sprintf(rangeAdjustedDescription, r.Min, r.Max)
}
