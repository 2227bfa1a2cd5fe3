package conversation

import (
	"github.com/BaSui01/charforge/types"
)

// Turn 一轮对话，创建后不可变
type Turn struct {
	Role types.Role `json:"role"`
	Text string     `json:"text"`
}

// UserTurn 创建用户轮次
func UserTurn(text string) Turn { return Turn{Role: types.RoleUser, Text: text} }

// ModelTurn 创建模型轮次
func ModelTurn(text string) Turn { return Turn{Role: types.RoleModel, Text: text} }

// History 只追加的对话历史。
// Append 返回新的 History，新旧实例不共享可变状态；历史不做去重或截断。
type History struct {
	turns []Turn
}

// NewHistory 从已有轮次创建历史
func NewHistory(turns ...Turn) *History {
	h := &History{turns: make([]Turn, len(turns))}
	copy(h.turns, turns)
	return h
}

// Append 返回在末尾追加 turn 后的新历史
func (h *History) Append(turn Turn) *History {
	n := h.Len()
	next := make([]Turn, n, n+1)
	if h != nil {
		copy(next, h.turns)
	}
	return &History{turns: append(next, turn)}
}

// AsContext 按追加顺序返回轮次副本
func (h *History) AsContext() []Turn {
	if h == nil {
		return nil
	}
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len 轮次数量
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.turns)
}

// Last 最后一轮
func (h *History) Last() (Turn, bool) {
	if h.Len() == 0 {
		return Turn{}, false
	}
	return h.turns[len(h.turns)-1], true
}
