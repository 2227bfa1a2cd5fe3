// 文件变更监听器，基于轮询检测修改时间并防抖分发回调。
// 用于基础数据文件的自动重载。
package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FileOp 文件操作类型
type FileOp int

const (
	FileOpCreate FileOp = iota
	FileOpWrite
	FileOpRemove
)

// String returns the string representation of FileOp
func (op FileOp) String() string {
	switch op {
	case FileOpCreate:
		return "CREATE"
	case FileOpWrite:
		return "WRITE"
	case FileOpRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent 文件变更事件
type FileEvent struct {
	Path      string    `json:"path"`
	Op        FileOp    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

// WatcherOption configures the FileWatcher
type WatcherOption func(*FileWatcher)

// WithDebounceDelay 设置防抖间隔
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *FileWatcher) {
		if d > 0 {
			w.debounceDelay = d
		}
	}
}

// WithPollInterval 设置轮询间隔
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *FileWatcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithWatcherLogger sets the logger for the watcher
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *FileWatcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// FileWatcher 监听一组文件的创建、修改与删除
type FileWatcher struct {
	mu sync.RWMutex

	paths         []string
	debounceDelay time.Duration
	pollInterval  time.Duration

	running   bool
	stopChan  chan struct{}
	eventChan chan FileEvent
	callbacks []func(FileEvent)

	logger       *zap.Logger
	lastModTimes map[string]time.Time
}

// NewFileWatcher 创建监听器；路径不存在时只记录警告，等待其被创建
func NewFileWatcher(paths []string, opts ...WatcherOption) (*FileWatcher, error) {
	w := &FileWatcher{
		paths:         append([]string(nil), paths...),
		debounceDelay: 100 * time.Millisecond,
		pollInterval:  time.Second,
		eventChan:     make(chan FileEvent, 64),
		lastModTimes:  make(map[string]time.Time),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("component", "file_watcher"))

	for _, path := range w.paths {
		if _, err := os.Stat(path); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to stat path %s: %w", path, err)
			}
			w.logger.Warn("watched file does not exist, waiting for creation", zap.String("path", path))
		}
	}
	return w, nil
}

// OnChange 注册变更回调，回调在分发 goroutine 中串行执行
func (w *FileWatcher) OnChange(callback func(FileEvent)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start 启动轮询与分发
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.stopChan = make(chan struct{})
	stop := w.stopChan
	for _, path := range w.paths {
		if info, err := os.Stat(path); err == nil {
			w.lastModTimes[path] = info.ModTime()
		}
	}
	w.mu.Unlock()

	go w.pollLoop(ctx, stop)
	go w.dispatchLoop(ctx, stop)

	w.logger.Info("file watcher started",
		zap.Strings("paths", w.paths),
		zap.Duration("poll_interval", w.pollInterval),
		zap.Duration("debounce_delay", w.debounceDelay))
	return nil
}

// Stop 停止监听，重复调用无副作用
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	close(w.stopChan)
	w.running = false
	w.logger.Info("file watcher stopped")
	return nil
}

// Paths 返回监听路径副本
func (w *FileWatcher) Paths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.paths...)
}

// IsRunning 是否在运行
func (w *FileWatcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *FileWatcher) pollLoop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			for _, evt := range w.checkFiles() {
				select {
				case w.eventChan <- evt:
				default:
					w.logger.Warn("file event dropped, channel full", zap.String("path", evt.Path))
				}
			}
		}
	}
}

// checkFiles 比较修改时间，返回检测到的事件
func (w *FileWatcher) checkFiles() []FileEvent {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	var events []FileEvent
	for _, path := range w.paths {
		info, err := os.Stat(path)
		lastMod, tracked := w.lastModTimes[path]
		switch {
		case err != nil:
			if os.IsNotExist(err) && tracked {
				delete(w.lastModTimes, path)
				events = append(events, FileEvent{Path: path, Op: FileOpRemove, Timestamp: now})
			}
		case !tracked:
			w.lastModTimes[path] = info.ModTime()
			events = append(events, FileEvent{Path: path, Op: FileOpCreate, Timestamp: now})
		case info.ModTime().After(lastMod):
			w.lastModTimes[path] = info.ModTime()
			events = append(events, FileEvent{Path: path, Op: FileOpWrite, Timestamp: now})
		}
	}
	return events
}

// dispatchLoop 同一路径的事件在防抖窗口内合并；pending 只在本 goroutine 中访问
func (w *FileWatcher) dispatchLoop(ctx context.Context, stop <-chan struct{}) {
	pending := make(map[string]FileEvent)
	timer := time.NewTimer(w.debounceDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case evt := <-w.eventChan:
			pending[evt.Path] = evt
			timer.Reset(w.debounceDelay)
		case <-timer.C:
			w.mu.RLock()
			callbacks := append(([]func(FileEvent))(nil), w.callbacks...)
			w.mu.RUnlock()

			for path, evt := range pending {
				w.logger.Debug("dispatching file event",
					zap.String("path", path),
					zap.String("op", evt.Op.String()))
				for _, cb := range callbacks {
					cb(evt)
				}
			}
			pending = make(map[string]FileEvent)
		}
	}
}
