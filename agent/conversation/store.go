package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/BaSui01/charforge/internal/cache"
)

// Store 会话历史的持久化。实现只追加，不得重排或删除已有轮次。
type Store interface {
	Append(ctx context.Context, sessionID string, turn Turn) error
	Load(ctx context.Context, sessionID string) ([]Turn, error)
}

// =============================================================================
// 🧠 内存实现
// =============================================================================

// MemoryStore 进程内存储
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]Turn
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{turns: make(map[string][]Turn)}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, sessionID string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[sessionID] = append(s.turns[sessionID], turn)
	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, sessionID string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.turns[sessionID]
	out := make([]Turn, len(src))
	copy(out, src)
	return out, nil
}

// =============================================================================
// 🗄️ Redis 实现
// =============================================================================

const historyKeyPrefix = "charforge:history:"

// RedisStore 基于 Redis 列表的存储，每个会话一个列表
type RedisStore struct {
	cache *cache.Manager
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(m *cache.Manager) *RedisStore {
	return &RedisStore{cache: m}
}

func historyKey(sessionID string) string { return historyKeyPrefix + sessionID }

// Append implements Store.
func (s *RedisStore) Append(ctx context.Context, sessionID string, turn Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to encode turn: %w", err)
	}
	_, err = s.cache.Append(ctx, historyKey(sessionID), string(data))
	return err
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, sessionID string) ([]Turn, error) {
	vals, err := s.cache.Range(ctx, historyKey(sessionID))
	if err != nil {
		return nil, err
	}
	turns := make([]Turn, 0, len(vals))
	for i, v := range vals {
		var t Turn
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			return nil, fmt.Errorf("failed to decode turn %d: %w", i, err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}
