package detector

import (
	"math/rand"
	"testing"
	"time"

	"github.com/Jeykison03/Leo-monitor/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

type step struct {
	v  int
	ms int64
}

func run(d *Detector, steps []step) []models.BeatEvent {
	var events []models.BeatEvent
	for _, s := range steps {
		if ev, ok := d.Process(models.RawSample{Value: s.v, At: epoch.Add(time.Duration(s.ms) * time.Millisecond)}); ok {
			events = append(events, ev)
		}
	}
	return events
}

func TestDetector_TwoBeatsScenario(t *testing.T) {
	d := New(DefaultConfig())

	events := run(d, []step{{520, -10}, {540, 0}, {540, 10}, {510, 20}, {540, 520}})

	require.Len(t, events, 2)
	assert.Equal(t, epoch, events[0].At)
	assert.True(t, events[0].First())
	assert.Equal(t, models.DefaultBPM, events[0].BPM)

	assert.Equal(t, epoch.Add(520*time.Millisecond), events[1].At)
	assert.Equal(t, 115, events[1].BPM)
	assert.Equal(t, 520*time.Millisecond, events[1].Interval)
	assert.False(t, events[1].First())
}

func TestDetector_RefractorySuppressesButLatches(t *testing.T) {
	d := New(DefaultConfig())

	events := run(d, []step{{520, -10}, {540, 0}, {540, 10}, {510, 20}, {540, 300}})
	require.Len(t, events, 1)
	assert.Equal(t, epoch, events[0].At)
	assert.False(t, d.Armed(), "suppressed crossing must still latch")

	// 仍在高平台上，不再触发
	events = run(d, []step{{560, 900}, {545, 1000}})
	assert.Empty(t, events)

	// 回落后再次上升：间隔从第一次心跳 (t=0) 计算
	events = run(d, []step{{500, 1100}, {540, 1200}})
	require.Len(t, events, 1)
	assert.Equal(t, 50, events[0].BPM)
}

func TestDetector_ImplausibleBPMSuppressed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Refractory = 100 * time.Millisecond
	d := New(cfg)

	// 第二次上升间隔 200ms -> 300 BPM，高于上限
	events := run(d, []step{{540, 0}, {500, 100}, {540, 200}})
	require.Len(t, events, 1)
	assert.False(t, d.Armed())

	// 间隔 2000ms -> 30 BPM，低于下限
	events = run(d, []step{{500, 300}, {540, 2000}})
	assert.Empty(t, events)

	// lastBeat 未被拒绝的上升沿更新：距 t=0 为 1000ms -> 60 BPM
	d = New(cfg)
	events = run(d, []step{{540, 0}, {500, 100}, {540, 200}, {500, 300}, {540, 1000}})
	require.Len(t, events, 2)
	assert.Equal(t, 60, events[1].BPM)
}

func TestDetector_PlateauEmitsOnce(t *testing.T) {
	d := New(DefaultConfig())

	steps := []step{{540, 0}}
	for ms := int64(10); ms <= 1000; ms += 10 {
		steps = append(steps, step{535 + int(ms%30), ms})
	}
	events := run(d, steps)
	assert.Len(t, events, 1)

	// 在滞回区间内的回落不会重新武装
	events = run(d, []step{{520, 1050}, {516, 1100}, {540, 1150}})
	assert.Empty(t, events)

	events = run(d, []step{{515, 1200}, {535, 1250}})
	require.Len(t, events, 1)
	assert.Equal(t, 48, events[0].BPM)
}

func TestDetector_RandomSequenceProperties(t *testing.T) {
	cfg := DefaultConfig()
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		d := New(cfg)
		var (
			last      *models.BeatEvent
			sawLow    = true
			now       int64
			beatCount int
		)
		for i := 0; i < 2000; i++ {
			now += int64(rng.Intn(40) + 1)
			v := 480 + rng.Intn(90)
			ev, ok := d.Process(models.RawSample{Value: v, At: epoch.Add(time.Duration(now) * time.Millisecond)})
			if ok {
				beatCount++
				require.True(t, sawLow, "beat without intervening low sample")
				require.GreaterOrEqual(t, ev.BPM, cfg.BPMMin)
				require.LessOrEqual(t, ev.BPM, cfg.BPMMax)
				if last != nil {
					require.Greater(t, ev.At.Sub(last.At), cfg.Refractory)
				}
				e := ev
				last = &e
				sawLow = false
			}
			if v <= cfg.ThresholdLow {
				sawLow = true
			}
		}
		assert.Greater(t, beatCount, 0)
	}
}

func TestDetector_Reset(t *testing.T) {
	d := New(DefaultConfig())
	run(d, []step{{540, 0}})
	require.False(t, d.Armed())

	d.Reset()
	assert.True(t, d.Armed())

	events := run(d, []step{{540, 100}})
	require.Len(t, events, 1)
	assert.True(t, events[0].First())
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.ThresholdLow = cfg.ThresholdHigh
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.BPMMin = 220
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Refractory = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.InitialBPM = 10
	assert.Error(t, cfg.Validate())
}
