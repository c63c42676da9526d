package sink

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Jeykison03/Leo-monitor/internal/models"
)

// DefaultMemoryCapacity 内存仓库保留的最大观测数
const DefaultMemoryCapacity = 10000

// MemoryRepository 内存观测仓库，未配置数据库时为统计与导出提供数据
// items 写满后作为环形缓冲区使用，next 指向下一个被覆盖（最旧）的位置
type MemoryRepository struct {
	mu       sync.RWMutex
	items    []*models.HeartRateObservation
	next     int
	capacity int
}

// NewMemoryRepository 创建内存仓库；超过容量时丢弃最旧的观测
func NewMemoryRepository(capacity int) *MemoryRepository {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryRepository{capacity: capacity}
}

// Name 后端名称
func (m *MemoryRepository) Name() string {
	return "memory"
}

// Insert 保存观测
func (m *MemoryRepository) Insert(_ context.Context, obs *models.HeartRateObservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.items) < m.capacity {
		m.items = append(m.items, obs)
		return nil
	}
	m.items[m.next] = obs
	m.next = (m.next + 1) % m.capacity
	return nil
}

// QueryRange 查询时间范围内的观测
func (m *MemoryRepository) QueryRange(_ context.Context, start, end time.Time) ([]*models.HeartRateObservation, error) {
	m.mu.RLock()
	var results []*models.HeartRateObservation
	for _, obs := range m.items {
		at := obs.EffectiveDateTime
		if at.Before(start) || at.After(end) {
			continue
		}
		results = append(results, obs)
	}
	m.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].EffectiveDateTime.Before(results[j].EffectiveDateTime)
	})
	return results, nil
}

func (m *MemoryRepository) size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
