// Package livestate 保存唯一的“最新读数”，一个写入者，任意多个读取者。
//
// 每个字段组（raw；bpm+lastBeat）的更新各自原子，但两组由独立的临界区更新，
// 同一次 Read 得到的 raw 可能比 bpm/lastBeat 更新。
package livestate

import (
	"sync"
	"time"

	"github.com/Jeykison03/Leo-monitor/internal/models"
)

// State 加锁保护的最新读数，由组合根创建并共享指针
type State struct {
	mu       sync.RWMutex
	bpm      int
	raw      int
	lastBeat time.Time
	hasBeat  bool
}

// New 创建带占位默认值的状态
func New() *State {
	return &State{
		bpm: models.DefaultBPM,
		raw: models.DefaultRaw,
	}
}

// Read 返回独立的值拷贝
func (s *State) Read() models.LiveReading {
	s.mu.RLock()
	r := models.LiveReading{BPM: s.bpm, Raw: s.raw}
	if s.hasBeat {
		t := s.lastBeat
		r.LastBeat = &t
	}
	s.mu.RUnlock()
	return r
}

// WriteRaw 更新原始值（每个采样）
func (s *State) WriteRaw(v int) {
	s.mu.Lock()
	s.raw = v
	s.mu.Unlock()
}

// WriteBeat 更新心率与最后心跳时间（确认心跳时）
func (s *State) WriteBeat(bpm int, at time.Time) {
	s.mu.Lock()
	s.bpm = bpm
	s.lastBeat = at
	s.hasBeat = true
	s.mu.Unlock()
}

// Touch 只更新最后心跳时间（首个心跳没有测得心率）
func (s *State) Touch(at time.Time) {
	s.mu.Lock()
	s.lastBeat = at
	s.hasBeat = true
	s.mu.Unlock()
}
