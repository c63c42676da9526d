// Package ingest 把设备数据流串联到检测器、实时状态与观测写入。
//
// Pipeline 实现 transport.Handler，所有方法都在唯一的采集协程中调用。
//
// 每个数据流（以及每次重新连接后）的第一次心跳没有可测量的间隔，
// 只刷新 last_beat，不生成观测也不写入后端；从第二次心跳起每次心跳写入一条观测。
package ingest

import (
	"github.com/Jeykison03/Leo-monitor/internal/detector"
	"github.com/Jeykison03/Leo-monitor/internal/livestate"
	"github.com/Jeykison03/Leo-monitor/internal/models"
	"github.com/Jeykison03/Leo-monitor/internal/protocol"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Dispatcher 非阻塞的观测提交（sink.Async 实现）
type Dispatcher interface {
	Submit(obs *models.HeartRateObservation) error
}

// Options 采集参数
type Options struct {
	Detector    detector.Config
	Subject     models.Subject
	HighBPMWarn int // 0 表示不告警
}

// Pipeline 采集流水线：解析 → 检测 → 实时状态 / 观测写入
type Pipeline struct {
	detector    *detector.Detector
	state       *livestate.State
	dispatcher  Dispatcher
	subject     models.Subject
	highBPMWarn int
	clock       clock.Clock
	logger      *zap.Logger
	metrics     *Metrics
}

// NewPipeline 创建采集流水线
func NewPipeline(opts Options, state *livestate.State, dispatcher Dispatcher, clk clock.Clock, logger *zap.Logger) *Pipeline {
	if clk == nil {
		clk = clock.New()
	}
	return &Pipeline{
		detector:    detector.New(opts.Detector),
		state:       state,
		dispatcher:  dispatcher,
		subject:     opts.Subject,
		highBPMWarn: opts.HighBPMWarn,
		clock:       clk,
		logger:      logger,
		metrics:     &Metrics{StartTime: clk.Now()},
	}
}

// SessionStarted 新数据流开始，之前的检测状态作废
func (p *Pipeline) SessionStarted() {
	p.detector.Reset()
	p.metrics.IncrementSession()
	p.logger.Info("Sensor stream started, detector reset")
}

// HandleLine 处理一行设备输出；无法解析的行直接忽略
func (p *Pipeline) HandleLine(line string) {
	now := p.clock.Now()
	value, ok := protocol.ParseLine(line)
	p.metrics.IncrementLine(ok, now)
	if !ok {
		return
	}

	p.state.WriteRaw(value)

	ev, beat := p.detector.Process(models.RawSample{Value: value, At: now})
	if !beat {
		return
	}

	if ev.First() {
		// 首个心跳没有间隔，不更新心率也不写入
		p.state.Touch(ev.At)
		p.metrics.IncrementBeat(ev.At, false, false)
		p.logger.Debug("First heartbeat of stream", zap.Time("at", ev.At))
		return
	}

	p.state.WriteBeat(ev.BPM, ev.At)

	high := p.highBPMWarn > 0 && ev.BPM > p.highBPMWarn
	if high {
		p.logger.Warn("High heart rate detected",
			zap.Int("bpm", ev.BPM),
			zap.Int("threshold", p.highBPMWarn),
			zap.String("patient_id", p.subject.PatientID),
		)
	}

	obs := models.NewHeartRateObservation(ev, p.subject)
	if err := p.dispatcher.Submit(obs); err != nil {
		p.metrics.IncrementDropped()
		p.metrics.IncrementBeat(ev.At, false, high)
		return
	}
	p.metrics.IncrementBeat(ev.At, true, high)
}

// Metrics 返回指标
func (p *Pipeline) Metrics() *Metrics {
	return p.metrics
}
