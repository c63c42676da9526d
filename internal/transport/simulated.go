package transport

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/Jeykison03/Leo-monitor/internal/protocol"

	"github.com/benbjohnson/clock"
)

// 模拟波形参数
const (
	DefaultSamplePeriod = 10 * time.Millisecond

	simBaseline       = 512
	simNoise          = 2 // 基线噪声 ±2，不会越过检测阈值
	simPulseAmplitude = 60
	simPulseWidth     = 80 * time.Millisecond

	simBPMMin   = 50
	simBPMMax   = 130
	simBPMJump  = 110
	simJumpOdds = 256
)

// Rand 随机数来源（*rand.Rand 满足该接口，测试中可注入固定序列）
type Rand interface {
	Intn(n int) int
}

// SimState 模拟器状态
type SimState struct {
	BPM       int
	SinceBeat time.Duration
	Step      time.Duration
}

// NewSimState 初始状态
func NewSimState(step time.Duration) SimState {
	if step <= 0 {
		step = DefaultSamplePeriod
	}
	return SimState{BPM: 70, Step: step}
}

// NextSimulatedSample 生成下一个采样值（纯函数）
//
// 波形为基线加每拍一个正弦脉冲；每拍结束时心率随机游走 -3..+3，
// 越界时拉回区间内，偶尔跳变到 110。
func NextSimulatedSample(st SimState, rng Rand) (SimState, int) {
	if st.Step <= 0 {
		st.Step = DefaultSamplePeriod
	}
	if st.BPM <= 0 {
		st.BPM = 70
	}

	st.SinceBeat += st.Step
	period := time.Minute / time.Duration(st.BPM)
	if st.SinceBeat >= period {
		st.SinceBeat -= period
		st.BPM += rng.Intn(7) - 3
		if st.BPM < simBPMMin {
			st.BPM = simBPMMin + 5
		}
		if st.BPM > simBPMMax {
			st.BPM = simBPMMax - 5
		}
		if rng.Intn(simJumpOdds) > simJumpOdds-6 {
			st.BPM = simBPMJump
		}
	}

	v := simBaseline + rng.Intn(2*simNoise+1) - simNoise
	if st.SinceBeat < simPulseWidth {
		phase := float64(st.SinceBeat) / float64(simPulseWidth)
		v += int(simPulseAmplitude * math.Sin(math.Pi*phase))
	}
	return st, v
}

// SimulatedOpener 模拟设备：按采样周期产生 RAW:<n> 行
type SimulatedOpener struct {
	Seed         int64
	SamplePeriod time.Duration
	Clock        clock.Clock
}

// Name 数据源名称
func (o *SimulatedOpener) Name() string {
	return "simulation"
}

// Open 模拟设备总是打开成功
func (o *SimulatedOpener) Open(_ context.Context) (Transport, error) {
	clk := o.Clock
	if clk == nil {
		clk = clock.New()
	}
	period := o.SamplePeriod
	if period <= 0 {
		period = DefaultSamplePeriod
	}
	seed := o.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &simulatedTransport{
		state:  NewSimState(period),
		rng:    rand.New(rand.NewSource(seed)),
		ticker: clk.Ticker(period),
		done:   make(chan struct{}),
	}, nil
}

type simulatedTransport struct {
	state     SimState
	rng       Rand
	ticker    *clock.Ticker
	done      chan struct{}
	closeOnce sync.Once
}

func (t *simulatedTransport) ReadLine() (string, error) {
	select {
	case <-t.done:
		return "", ErrClosed
	case <-t.ticker.C:
	}

	var v int
	t.state, v = NextSimulatedSample(t.state, t.rng)
	return protocol.FormatLine(v), nil
}

func (t *simulatedTransport) Close() error {
	t.closeOnce.Do(func() {
		t.ticker.Stop()
		close(t.done)
	})
	return nil
}
