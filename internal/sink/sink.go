// Package sink 负责心率观测数据的持久化与转发。
//
// 采集协程只调用 Async.Submit（非阻塞），实际写入在独立 worker 中完成；
// 单个后端失败只记录日志与计数，不影响采集与其它后端。
package sink

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Jeykison03/Leo-monitor/internal/models"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull 写入队列已满，观测被丢弃
	ErrQueueFull = errors.New("sink: queue full")
	// ErrClosed 分发器已关闭
	ErrClosed = errors.New("sink: closed")
)

// DefaultWriteTimeout 单个后端单次写入超时
const DefaultWriteTimeout = 10 * time.Second

// Backend 观测数据写入后端
type Backend interface {
	Name() string
	Insert(ctx context.Context, obs *models.HeartRateObservation) error
}

// Querier 按时间范围查询已持久化的观测（闭区间，按时间升序）
type Querier interface {
	QueryRange(ctx context.Context, start, end time.Time) ([]*models.HeartRateObservation, error)
}

// Async 带有界队列的异步分发器
type Async struct {
	backends     []Backend
	queue        chan *models.HeartRateObservation
	writeTimeout time.Duration
	logger       *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	submitted atomic.Int64
	dropped   atomic.Int64
	written   atomic.Int64
	failed    atomic.Int64
}

// NewAsync 创建分发器并启动 worker
func NewAsync(queueSize int, logger *zap.Logger, backends ...Backend) *Async {
	if queueSize <= 0 {
		queueSize = 1
	}
	a := &Async{
		backends:     backends,
		queue:        make(chan *models.HeartRateObservation, queueSize),
		writeTimeout: DefaultWriteTimeout,
		logger:       logger,
		done:         make(chan struct{}),
	}
	go a.run()
	return a
}

// Submit 非阻塞提交；队列满时丢弃并返回 ErrQueueFull
func (a *Async) Submit(obs *models.HeartRateObservation) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}

	select {
	case a.queue <- obs:
		a.submitted.Add(1)
		return nil
	default:
		a.dropped.Add(1)
		a.logger.Warn("Sink queue full, dropping observation",
			zap.String("observation_id", obs.ID),
			zap.Int("heart_rate", obs.HeartRate()),
		)
		return ErrQueueFull
	}
}

func (a *Async) run() {
	defer close(a.done)
	for obs := range a.queue {
		a.write(obs)
	}
}

func (a *Async) write(obs *models.HeartRateObservation) {
	for _, b := range a.backends {
		ctx, cancel := context.WithTimeout(context.Background(), a.writeTimeout)
		err := b.Insert(ctx, obs)
		cancel()

		if err != nil {
			a.failed.Add(1)
			a.logger.Error("Failed to write observation",
				zap.String("backend", b.Name()),
				zap.String("observation_id", obs.ID),
				zap.Error(err),
			)
			continue
		}
		a.written.Add(1)
		a.logger.Debug("Observation written",
			zap.String("backend", b.Name()),
			zap.String("observation_id", obs.ID),
			zap.Int("heart_rate", obs.HeartRate()),
		)
	}
}

// Close 停止接收新观测，等待队列中剩余数据写完或 ctx 到期
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats 分发器计数快照
type Stats struct {
	Submitted int64
	Dropped   int64
	Written   int64
	Failed    int64
}

// Stats 返回计数快照
func (a *Async) Stats() Stats {
	return Stats{
		Submitted: a.submitted.Load(),
		Dropped:   a.dropped.Load(),
		Written:   a.written.Load(),
		Failed:    a.failed.Load(),
	}
}
