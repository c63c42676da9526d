package stream

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Jeykison03/Leo-monitor/internal/livestate"
	"github.com/Jeykison03/Leo-monitor/internal/models"
	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, ctx context.Context, state *livestate.State) (*Publisher, string) {
	t.Helper()
	pub := NewPublisher(state, Config{TickInterval: 5 * time.Millisecond, WriteTimeout: time.Second}, clock.New(), zap.NewNop())

	server := httptest.NewUnstartedServer(pub)
	server.Config.BaseContext = func(net.Listener) context.Context { return ctx }
	server.Start()
	t.Cleanup(server.Close)

	return pub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readBioData(t *testing.T, conn *websocket.Conn) models.BioDataMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg models.BioDataMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestPublisher_PushesDefaultsBeforeAnyBeat(t *testing.T) {
	_, url := newTestServer(t, context.Background(), livestate.New())
	conn := dial(t, url)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"BIO_DATA"`)
	assert.Contains(t, string(raw), `"last_beat":null`)

	msg := readBioData(t, conn)
	assert.Equal(t, models.MessageTypeBioData, msg.Type)
	assert.Equal(t, models.DefaultBPM, msg.BPM)
	assert.Equal(t, models.DefaultRaw, msg.Raw)
	assert.Nil(t, msg.LastBeat)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestPublisher_ReflectsLiveState(t *testing.T) {
	state := livestate.New()
	_, url := newTestServer(t, context.Background(), state)
	conn := dial(t, url)
	readBioData(t, conn)

	beat := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	state.WriteBeat(88, beat)
	state.WriteRaw(601)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msg := readBioData(t, conn)
		if msg.BPM == 88 && msg.Raw == 601 && msg.LastBeat != nil && msg.LastBeat.Equal(beat) {
			return
		}
	}
	t.Fatal("live state change never reached the viewer")
}

func TestPublisher_ViewersAreIndependent(t *testing.T) {
	pub, url := newTestServer(t, context.Background(), livestate.New())
	a := dial(t, url)
	b := dial(t, url)
	readBioData(t, a)
	readBioData(t, b)
	require.Eventually(t, func() bool { return pub.Hub().Count() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, a.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	a.Close()

	require.Eventually(t, func() bool { return pub.Hub().Count() == 1 }, 2*time.Second, time.Millisecond)

	for i := 0; i < 5; i++ {
		msg := readBioData(t, b)
		assert.Equal(t, models.MessageTypeBioData, msg.Type)
	}
	assert.Equal(t, int64(2), pub.Hub().Total())
}

func TestPublisher_AnswersPing(t *testing.T) {
	_, url := newTestServer(t, context.Background(), livestate.New())
	conn := dial(t, url)

	pong := make(chan string, 1)
	conn.SetPongHandler(func(data string) error {
		select {
		case pong <- data:
		default:
		}
		return nil
	})
	require.NoError(t, conn.WriteControl(websocket.PingMessage, []byte("are-you-there"), time.Now().Add(time.Second)))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-pong:
			assert.Equal(t, "are-you-there", data)
			return
		case <-deadline:
			t.Fatal("no pong received")
		default:
			readBioData(t, conn)
		}
	}
}

func TestPublisher_ShutdownClosesViewers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pub, url := newTestServer(t, ctx, livestate.New())
	conn := dial(t, url)
	readBioData(t, conn)

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var err error
	for err == nil {
		_, _, err = conn.ReadMessage()
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
	require.Eventually(t, func() bool { return pub.Hub().Count() == 0 }, time.Second, time.Millisecond)
}

func TestPublisher_RejectsPlainHTTP(t *testing.T) {
	pub := NewPublisher(livestate.New(), DefaultConfig(), nil, zap.NewNop())
	rec := httptest.NewRecorder()
	pub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/heart_rate", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, pub.Hub().Count())
}
