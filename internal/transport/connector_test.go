package transport

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeTransport struct {
	mu     sync.Mutex
	lines  []string
	endErr error
	closed bool
}

func (f *fakeTransport) ReadLine() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return "", ErrClosed
	}
	if len(f.lines) == 0 {
		return "", f.endErr
	}
	l := f.lines[0]
	f.lines = f.lines[1:]
	if l == "" {
		return "", ErrReadTimeout
	}
	return l, nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// fakeOpener 前 failFirst 次打开失败，之后依次返回 sessions 中的数据流
type fakeOpener struct {
	mu        sync.Mutex
	failFirst int
	sessions  []*fakeTransport
	opens     []time.Time
}

func (o *fakeOpener) Name() string { return "fake" }

func (o *fakeOpener) Open(_ context.Context) (Transport, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens = append(o.opens, time.Now())
	if len(o.opens) <= o.failFirst || len(o.sessions) == 0 {
		return nil, errors.New("no such device")
	}
	s := o.sessions[0]
	o.sessions = o.sessions[1:]
	return s, nil
}

func (o *fakeOpener) openTimes() []time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]time.Time(nil), o.opens...)
}

type recordingHandler struct {
	mu       sync.Mutex
	sessions int
	lines    []string
}

func (h *recordingHandler) SessionStarted() {
	h.mu.Lock()
	h.sessions++
	h.mu.Unlock()
}

func (h *recordingHandler) HandleLine(line string) {
	h.mu.Lock()
	h.lines = append(h.lines, line)
	h.mu.Unlock()
}

func (h *recordingHandler) snapshot() (int, []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions, append([]string(nil), h.lines...)
}

func TestConnector_RetriesWithFixedDelayWithoutBusyLoop(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	opener := &fakeOpener{failFirst: 1 << 30}
	delay := 20 * time.Millisecond
	c := NewConnector(opener, delay, clock.New(), zap.New(core))

	ctx, cancel := context.WithTimeout(context.Background(), 210*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.Run(ctx, &recordingHandler{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("connector did not stop after context cancellation")
	}

	opens := opener.openTimes()
	assert.GreaterOrEqual(t, len(opens), 3)
	assert.LessOrEqual(t, len(opens), 12, "retries must wait for the delay")
	for i := 1; i < len(opens); i++ {
		assert.GreaterOrEqual(t, opens[i].Sub(opens[i-1]), delay-2*time.Millisecond)
	}
	assert.Equal(t, int64(len(opens)), c.Attempts())
	assert.Equal(t, int64(len(opens)), c.Failures())
	assert.NotZero(t, logs.FilterMessage("Failed to open transport, retrying").Len())
}

func TestConnector_ReconnectsAfterStreamEnds(t *testing.T) {
	first := &fakeTransport{lines: []string{"RAW:520", "", "RAW:540"}, endErr: io.EOF}
	second := &fakeTransport{lines: []string{"junk", "RAW:510"}, endErr: errors.New("i/o error")}
	opener := &fakeOpener{failFirst: 1, sessions: []*fakeTransport{first, second}}

	c := NewConnector(opener, 5*time.Millisecond, clock.New(), zap.NewNop())
	h := &recordingHandler{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, h)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, lines := h.snapshot()
		return len(lines) == 4
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	sessions, lines := h.snapshot()
	assert.Equal(t, 2, sessions)
	assert.Equal(t, []string{"RAW:520", "RAW:540", "junk", "RAW:510"}, lines)
	assert.True(t, first.closed)
	assert.True(t, second.closed)
	assert.False(t, c.Connected())
}

// 阻塞读取的数据流在 ctx 取消时被关闭
type blockingTransport struct {
	closed chan struct{}
	once   sync.Once
}

func (b *blockingTransport) ReadLine() (string, error) {
	<-b.closed
	return "", ErrClosed
}

func (b *blockingTransport) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

type singleOpener struct{ t Transport }

func (o singleOpener) Name() string                             { return "single" }
func (o singleOpener) Open(context.Context) (Transport, error) { return o.t, nil }

func TestConnector_CancelUnblocksRead(t *testing.T) {
	bt := &blockingTransport{closed: make(chan struct{})}
	c := NewConnector(singleOpener{t: bt}, time.Hour, clock.New(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, &recordingHandler{})
		close(done)
	}()

	require.Eventually(t, c.Connected, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("blocked read was not released on cancellation")
	}
}
