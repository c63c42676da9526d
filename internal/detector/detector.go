// Package detector 将原始采样序列转换为离散心跳事件。
//
// 检测器是一个两状态机：ARMED（等待上升沿）与 LATCHED（已在当前脉冲上触发，
// 等待信号回落）。高低阈值构成滞回区间，不应期与心率合理区间用于过滤伪迹。
// 被拒绝的上升沿（过早或心率不合理）同样进入 LATCHED，避免在同一高平台上反复判断。
package detector

import (
	"errors"
	"fmt"
	"time"

	"github.com/Jeykison03/Leo-monitor/internal/models"
)

// Config 检测参数
type Config struct {
	ThresholdHigh int
	ThresholdLow  int
	Refractory    time.Duration
	BPMMin        int
	BPMMax        int
	// InitialBPM 流中第一次心跳（无间隔可测）携带的心率
	InitialBPM int
}

// DefaultConfig 默认参数（适用于 10 位 ADC 脉搏传感器）
func DefaultConfig() Config {
	return Config{
		ThresholdHigh: 535,
		ThresholdLow:  515,
		Refractory:    450 * time.Millisecond,
		BPMMin:        40,
		BPMMax:        200,
		InitialBPM:    models.DefaultBPM,
	}
}

// Validate 校验参数
func (c Config) Validate() error {
	if c.ThresholdHigh <= c.ThresholdLow {
		return fmt.Errorf("threshold high (%d) must be greater than threshold low (%d)", c.ThresholdHigh, c.ThresholdLow)
	}
	if c.Refractory < 0 {
		return errors.New("refractory period must not be negative")
	}
	if c.BPMMin <= 0 || c.BPMMin > c.BPMMax {
		return fmt.Errorf("invalid bpm band [%d, %d]", c.BPMMin, c.BPMMax)
	}
	if c.InitialBPM < c.BPMMin || c.InitialBPM > c.BPMMax {
		return fmt.Errorf("initial bpm %d outside band [%d, %d]", c.InitialBPM, c.BPMMin, c.BPMMax)
	}
	return nil
}

// Detector 滞回心跳检测器，非并发安全，由采集协程独占
type Detector struct {
	cfg      Config
	latched  bool
	lastBeat time.Time
	hasBeat  bool
}

// New 创建检测器（初始为 ARMED）
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Process 处理一个采样，确认心跳时返回事件
func (d *Detector) Process(s models.RawSample) (models.BeatEvent, bool) {
	if d.latched {
		if s.Value <= d.cfg.ThresholdLow {
			d.latched = false
		}
		return models.BeatEvent{}, false
	}

	if s.Value < d.cfg.ThresholdHigh {
		return models.BeatEvent{}, false
	}

	d.latched = true

	if !d.hasBeat {
		d.hasBeat = true
		d.lastBeat = s.At
		return models.BeatEvent{BPM: d.cfg.InitialBPM, At: s.At}, true
	}

	delta := s.At.Sub(d.lastBeat)
	if delta <= d.cfg.Refractory || delta < time.Millisecond {
		return models.BeatEvent{}, false
	}

	bpm := int(60000 / delta.Milliseconds())
	if bpm < d.cfg.BPMMin || bpm > d.cfg.BPMMax {
		return models.BeatEvent{}, false
	}

	d.lastBeat = s.At
	return models.BeatEvent{BPM: bpm, At: s.At, Interval: delta}, true
}

// Armed 是否处于 ARMED 状态
func (d *Detector) Armed() bool {
	return !d.latched
}

// Reset 清空状态（重新连接设备后调用）
func (d *Detector) Reset() {
	d.latched = false
	d.hasBeat = false
	d.lastBeat = time.Time{}
}
