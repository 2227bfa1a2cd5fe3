package generation

import (
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/charforge/character"
	charimage "github.com/BaSui01/charforge/llm/image"
)

// EventType 事件类型
type EventType string

const (
	EventStateChanged    EventType = "state_changed"
	EventResultPublished EventType = "result_published"
	EventCommentary      EventType = "commentary"
	EventImageReady      EventType = "image_ready"
	EventWarning         EventType = "warning"
	EventFailed          EventType = "failed"
)

// 结果来源
const (
	SourceGenerated = "generated"
	SourceManual    = "manual"
)

// Event 编排器向观察者发布的事件
type Event struct {
	Type      EventType                   `json:"type"`
	SessionID string                      `json:"session_id,omitempty"`
	From      State                       `json:"from,omitempty"`
	To        State                       `json:"to,omitempty"`
	Result    *character.GenerationResult `json:"result,omitempty"`
	Source    string                      `json:"source,omitempty"`
	Image     *charimage.Handle           `json:"image,omitempty"`
	Text      string                      `json:"text,omitempty"`
	Code      string                      `json:"code,omitempty"`
	Timestamp time.Time                   `json:"timestamp"`
}

// Handler 事件处理器
type Handler func(Event)

// observers 同步分发事件；处理器在发布者的 goroutine 中按订阅顺序执行
type observers struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]Handler
}

func (o *observers) subscribe(h Handler) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.handlers == nil {
		o.handlers = make(map[int]Handler)
	}
	id := o.next
	o.next++
	o.handlers[id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.handlers, id)
		})
	}
}

func (o *observers) publish(e Event) {
	o.mu.RLock()
	ids := make([]int, 0, len(o.handlers))
	for id := range o.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	hs := make([]Handler, 0, len(ids))
	for _, id := range ids {
		hs = append(hs, o.handlers[id])
	}
	o.mu.RUnlock()

	for _, h := range hs {
		h(e)
	}
}
