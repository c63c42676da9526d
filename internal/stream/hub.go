package stream

import (
	"sync"
	"sync/atomic"
	"time"
)

// Hub 记录当前在线的观看端，仅用于日志与统计；观看端之间不共享可变状态
type Hub struct {
	mu      sync.RWMutex
	viewers map[string]time.Time

	total atomic.Int64
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{viewers: make(map[string]time.Time)}
}

func (h *Hub) add(id string, at time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.viewers[id] = at
	h.total.Add(1)
	return len(h.viewers)
}

func (h *Hub) remove(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.viewers, id)
	return len(h.viewers)
}

// Count 当前在线观看端数量
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// Total 累计连接过的观看端数量
func (h *Hub) Total() int64 {
	return h.total.Load()
}
