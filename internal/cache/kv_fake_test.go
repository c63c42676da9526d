package cache_test

import (
	"context"
	"sync"
	"time"

	"github.com/Jeykison03/Leo-monitor/internal/cache"
)

// memorySnapshotStore 内存快照存储（带 TTL）
type memorySnapshotStore struct {
	mu      sync.Mutex
	payload map[string][]byte
	expires map[string]time.Time
}

func newMemorySnapshotStore() *memorySnapshotStore {
	return &memorySnapshotStore{
		payload: make(map[string][]byte),
		expires: make(map[string]time.Time),
	}
}

func (m *memorySnapshotStore) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	payload, ok := m.payload[key]
	if !ok {
		return nil, cache.ErrNoSnapshot
	}
	if exp, ok := m.expires[key]; ok && time.Now().After(exp) {
		delete(m.payload, key)
		delete(m.expires, key)
		return nil, cache.ErrNoSnapshot
	}
	return payload, nil
}

func (m *memorySnapshotStore) Save(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.payload[key] = append([]byte(nil), payload...)
	if ttl > 0 {
		m.expires[key] = time.Now().Add(ttl)
	} else {
		delete(m.expires, key)
	}
	return nil
}
