package models

import "time"

// RawSample 传感器原始采样值及其到达时刻（不持久化）
type RawSample struct {
	Value int
	At    time.Time
}

// BeatEvent 检测器确认的一次心跳
// Interval 为与上一次心跳的间隔；流中的第一次心跳没有间隔（Interval == 0）
type BeatEvent struct {
	BPM      int
	At       time.Time
	Interval time.Duration
}

// First 是否为流中第一次心跳（没有测得的心率）
func (e BeatEvent) First() bool {
	return e.Interval == 0
}

// LiveReading 最新读数快照
// BPM/LastBeat 仅在确认心跳时更新，Raw 在每个采样时更新
type LiveReading struct {
	BPM      int
	Raw      int
	LastBeat *time.Time
}

const (
	// DefaultBPM 启动时的占位心率
	DefaultBPM = 70
	// DefaultRaw 启动时的占位原始值（10 位 ADC 中点）
	DefaultRaw = 512
)
