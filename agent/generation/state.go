package generation

import "fmt"

// State 生成编排器状态
type State string

const (
	StateIdle         State = "idle"
	StateStatsPending State = "stats_pending"
	StateStatsReady   State = "stats_ready"
	StateStatsFailed  State = "stats_failed"
	StateImagePending State = "image_pending"
	StateImageReady   State = "image_ready"
	StateImageFailed  State = "image_failed"
)

// validTransitions 合法的状态转换；终态在序列结束时回到 Idle
var validTransitions = map[State][]State{
	StateIdle:         {StateStatsPending, StateImagePending}, // 完整生成 / 仅重新生成图像
	StateStatsPending: {StateStatsReady, StateStatsFailed},
	StateStatsReady:   {StateImagePending, StateIdle},
	StateStatsFailed:  {StateIdle},
	StateImagePending: {StateImageReady, StateImageFailed},
	StateImageReady:   {StateIdle},
	StateImageFailed:  {StateIdle},
}

// CanTransition 检查状态转换是否合法
func CanTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal 序列在该状态结束
func (s State) IsTerminal() bool {
	switch s {
	case StateStatsReady, StateStatsFailed, StateImageReady, StateImageFailed:
		return true
	}
	return false
}

// ErrInvalidTransition 非法状态转换错误
type ErrInvalidTransition struct {
	From State
	To   State
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}
