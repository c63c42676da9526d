// Package stream 通过 WebSocket 向任意数量的观看端周期推送最新读数。
//
// 每个观看端一个写协程加一个读协程：写协程按固定间隔读取快照并推送，
// 读协程只负责应答 ping 与发现连接关闭。推送不排队，快照在写入时生成。
package stream

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Jeykison03/Leo-monitor/internal/models"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Source 最新读数来源（livestate.State 实现）
type Source interface {
	Read() models.LiveReading
}

// Config 推送参数
type Config struct {
	TickInterval   time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
}

// DefaultConfig 默认推送参数
func DefaultConfig() Config {
	return Config{
		TickInterval:   20 * time.Millisecond,
		WriteTimeout:   5 * time.Second,
		MaxMessageSize: 4096,
	}
}

// Publisher WebSocket 推送处理器
type Publisher struct {
	source   Source
	cfg      Config
	upgrader *websocket.Upgrader
	hub      *Hub
	clock    clock.Clock
	logger   *zap.Logger
}

// NewPublisher 创建推送处理器
func NewPublisher(source Source, cfg Config, clk clock.Clock, logger *zap.Logger) *Publisher {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Publisher{
		source: source,
		cfg:    cfg,
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		hub:    NewHub(),
		clock:  clk,
		logger: logger,
	}
}

// Hub 返回观看端登记表
func (p *Publisher) Hub() *Hub {
	return p.hub
}

// ServeHTTP 升级为 WebSocket 并推送直到观看端断开或服务关闭
func (p *Publisher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	p.serve(r.Context(), conn, r.RemoteAddr)
}

func (p *Publisher) serve(ctx context.Context, conn *websocket.Conn, remote string) {
	id := uuid.NewString()
	logger := p.logger.With(zap.String("viewer_id", id), zap.String("remote_addr", remote))

	active := p.hub.add(id, p.clock.Now())
	logger.Info("Viewer connected", zap.Int("active_viewers", active))

	inboundClosed := make(chan struct{})
	conn.SetReadLimit(p.cfg.MaxMessageSize)
	conn.SetPingHandler(func(data string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(p.cfg.WriteTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	go p.readLoop(conn, inboundClosed, logger)

	reason := p.writeLoop(ctx, conn, inboundClosed, logger)

	conn.Close()
	<-inboundClosed

	active = p.hub.remove(id)
	logger.Info("Viewer disconnected",
		zap.String("reason", reason),
		zap.Int("active_viewers", active),
	)
}

// readLoop 丢弃观看端发来的数据帧；控制帧由处理器应答；出错即关闭 inboundClosed
func (p *Publisher) readLoop(conn *websocket.Conn, inboundClosed chan<- struct{}, logger *zap.Logger) {
	defer close(inboundClosed)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Viewer read ended", zap.Error(err))
			}
			return
		}
	}
}

func (p *Publisher) writeLoop(ctx context.Context, conn *websocket.Conn, inboundClosed <-chan struct{}, logger *zap.Logger) string {
	ticker := p.clock.Ticker(p.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second),
			)
			return "shutdown"
		case <-inboundClosed:
			return "closed by viewer"
		case <-ticker.C:
			msg := models.NewBioDataMessage(p.source.Read(), p.clock.Now())
			_ = conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug("Viewer write failed", zap.Error(err))
				return "write failed"
			}
		}
	}
}
