package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/charforge/agent/generation"
)

// trackTimeout 单次写入上限，事件处理器运行在发布者的 goroutine 中
const trackTimeout = 5 * time.Second

// Track 订阅编排器事件：每次发布结果写一条记录，图像就绪后回填路径。
// 写入失败只记录日志，不影响生成流程。
func (r *RecordRepository) Track(o *generation.Orchestrator) (unsubscribe func()) {
	sessionID := o.SessionID()
	return o.Subscribe(func(e generation.Event) {
		switch e.Type {
		case generation.EventResultPublished:
			if e.Result == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), trackTimeout)
			defer cancel()
			rec := NewRecord(sessionID, e.Source, *e.Result, o.Range())
			if err := r.Save(ctx, rec); err != nil {
				r.logger.Warn("failed to record generation result",
					zap.String("session_id", sessionID), zap.Error(err))
			}
		case generation.EventImageReady:
			if e.Image == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), trackTimeout)
			defer cancel()
			if _, err := r.AttachImage(ctx, sessionID, e.Image.Path); err != nil {
				r.logger.Warn("failed to attach image to record",
					zap.String("session_id", sessionID), zap.Error(err))
			}
		}
	})
}
