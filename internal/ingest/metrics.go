package ingest

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Metrics 采集监控指标
type Metrics struct {
	mu sync.RWMutex

	// 数据流统计
	Sessions      int64 // 成功打开数据流的次数
	LinesReceived int64 // 收到的行数
	LinesRejected int64 // 无法解析的行数（噪声）

	// 心跳统计
	BeatsDetected       int64 // 确认的心跳数（含首个心跳）
	BeatsPersisted      int64 // 提交写入的心跳数
	HighHeartRateBeats  int64 // 超过告警阈值的心跳数
	ObservationsDropped int64 // 写入队列满或已关闭而丢弃的观测数

	LastSampleTime time.Time
	LastBeatTime   time.Time

	StartTime time.Time
}

// GetSnapshot 获取指标快照（线程安全）
func (m *Metrics) GetSnapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		Sessions:            m.Sessions,
		LinesReceived:       m.LinesReceived,
		LinesRejected:       m.LinesRejected,
		BeatsDetected:       m.BeatsDetected,
		BeatsPersisted:      m.BeatsPersisted,
		HighHeartRateBeats:  m.HighHeartRateBeats,
		ObservationsDropped: m.ObservationsDropped,
		LastSampleTime:      m.LastSampleTime,
		LastBeatTime:        m.LastBeatTime,
		StartTime:           m.StartTime,
	}
}

// IncrementSession 增加会话计数
func (m *Metrics) IncrementSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sessions++
}

// IncrementLine 增加行计数；accepted=false 表示被解析器拒绝
func (m *Metrics) IncrementLine(accepted bool, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LinesReceived++
	if !accepted {
		m.LinesRejected++
		return
	}
	m.LastSampleTime = at
}

// IncrementBeat 增加心跳计数
func (m *Metrics) IncrementBeat(at time.Time, persisted, high bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BeatsDetected++
	m.LastBeatTime = at
	if persisted {
		m.BeatsPersisted++
	}
	if high {
		m.HighHeartRateBeats++
	}
}

// IncrementDropped 增加丢弃计数
func (m *Metrics) IncrementDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ObservationsDropped++
}

// ReportMetrics 定期报告指标，直到 ctx 取消
func (p *Pipeline) ReportMetrics(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := p.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.logMetrics()
		}
	}
}

func (p *Pipeline) logMetrics() {
	snapshot := p.metrics.GetSnapshot()
	uptime := p.clock.Since(snapshot.StartTime)

	rejectRate := float64(0)
	if snapshot.LinesReceived > 0 {
		rejectRate = float64(snapshot.LinesRejected) / float64(snapshot.LinesReceived) * 100
	}

	p.logger.Info("Metrics report",
		zap.Int64("sessions", snapshot.Sessions),
		zap.Int64("lines_received", snapshot.LinesReceived),
		zap.Int64("lines_rejected", snapshot.LinesRejected),
		zap.Float64("reject_rate", rejectRate),
		zap.Int64("beats_detected", snapshot.BeatsDetected),
		zap.Int64("beats_persisted", snapshot.BeatsPersisted),
		zap.Int64("high_heart_rate_beats", snapshot.HighHeartRateBeats),
		zap.Int64("observations_dropped", snapshot.ObservationsDropped),
		zap.Time("last_sample", snapshot.LastSampleTime),
		zap.Time("last_beat", snapshot.LastBeatTime),
		zap.Duration("uptime", uptime),
	)
}
