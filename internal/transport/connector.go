package transport

import (
	"context"
	"errors"
	"io"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// DefaultRetryDelay 打开失败或数据流中断后的固定重试间隔
const DefaultRetryDelay = 5 * time.Second

// Handler 接收数据流中的行
type Handler interface {
	// SessionStarted 每次成功打开数据流后调用
	SessionStarted()
	// HandleLine 在采集协程中同步调用
	HandleLine(line string)
}

// Connector 负责打开数据源并在失败后无限重试（固定间隔，永不终止）
type Connector struct {
	opener     Opener
	retryDelay time.Duration
	clock      clock.Clock
	logger     *zap.Logger

	attempts  atomic.Int64
	failures  atomic.Int64
	connected atomic.Bool
}

// NewConnector 创建 Connector
func NewConnector(opener Opener, retryDelay time.Duration, clk clock.Clock, logger *zap.Logger) *Connector {
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Connector{
		opener:     opener,
		retryDelay: retryDelay,
		clock:      clk,
		logger:     logger.With(zap.String("transport", opener.Name())),
	}
}

// Run 阻塞运行直到 ctx 取消
func (c *Connector) Run(ctx context.Context, h Handler) {
	for {
		if ctx.Err() != nil {
			return
		}

		attempt := c.attempts.Add(1)
		c.logger.Info("Opening transport", zap.Int64("attempt", attempt))

		t, err := c.opener.Open(ctx)
		if err != nil {
			c.failures.Add(1)
			c.logger.Warn("Failed to open transport, retrying",
				zap.Int64("attempt", attempt),
				zap.Duration("retry_delay", c.retryDelay),
				zap.Error(err),
			)
		} else {
			c.logger.Info("Transport opened", zap.Int64("attempt", attempt))
			err = c.session(ctx, t, h)
			if ctx.Err() != nil {
				c.logger.Info("Transport closed on shutdown")
				return
			}
			c.failures.Add(1)
			if errors.Is(err, io.EOF) {
				c.logger.Warn("Transport stream ended, retrying", zap.Duration("retry_delay", c.retryDelay))
			} else {
				c.logger.Warn("Transport read failed, retrying",
					zap.Duration("retry_delay", c.retryDelay),
					zap.Error(err),
				)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-c.clock.After(c.retryDelay):
		}
	}
}

// session 读取一个已打开的数据流直到出错；ctx 取消时关闭数据流以解除阻塞读取
func (c *Connector) session(ctx context.Context, t Transport, h Handler) error {
	stop := context.AfterFunc(ctx, func() { t.Close() })
	defer func() {
		stop()
		t.Close()
		c.connected.Store(false)
	}()

	c.connected.Store(true)
	h.SessionStarted()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := t.ReadLine()
		if err != nil {
			if errors.Is(err, ErrReadTimeout) {
				runtime.Gosched()
				continue
			}
			return err
		}
		h.HandleLine(line)
	}
}

// Attempts 打开尝试次数
func (c *Connector) Attempts() int64 {
	return c.attempts.Load()
}

// Failures 打开失败与中断次数
func (c *Connector) Failures() int64 {
	return c.failures.Load()
}

// Connected 当前是否有打开的数据流
func (c *Connector) Connected() bool {
	return c.connected.Load()
}
