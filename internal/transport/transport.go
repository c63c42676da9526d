// Package transport 提供面向行的设备数据源（真实串口或模拟波形）以及断线重连的 Connector。
package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

var (
	// ErrReadTimeout 读取超时，表示“没有数据”，不是错误
	ErrReadTimeout = errors.New("transport: read timeout")
	// ErrClosed 数据流已关闭
	ErrClosed = errors.New("transport: closed")
)

// maxLineLength 超过该长度仍无换行的数据视为噪声丢弃
const maxLineLength = 1024

// Transport 一次已打开的数据流，唯一能力是产生下一行
type Transport interface {
	ReadLine() (string, error)
	Close() error
}

// Opener 打开数据流；每个进程只会选择一种实现
type Opener interface {
	Name() string
	Open(ctx context.Context) (Transport, error)
}

// Options 数据源选项
type Options struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration

	Simulation   bool
	Seed         int64
	SamplePeriod time.Duration
}

// NewOpener 根据配置选择真实串口或模拟数据源
func NewOpener(opts Options, clk clock.Clock) Opener {
	if opts.Simulation {
		return &SimulatedOpener{
			Seed:         opts.Seed,
			SamplePeriod: opts.SamplePeriod,
			Clock:        clk,
		}
	}
	return &SerialOpener{
		Port:        opts.Port,
		BaudRate:    opts.BaudRate,
		ReadTimeout: opts.ReadTimeout,
	}
}

// lineReader 按行切分字节流；底层 Read 返回 (0, nil) 视为读取超时，未完成的行保留到下次读取。
// 超过 maxLineLength 的行整行丢弃（直到下一个换行符）。
type lineReader struct {
	r          io.Reader
	buf        []byte
	chunk      []byte
	err        error
	discarding bool
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: r, chunk: make([]byte, 256)}
}

func (l *lineReader) ReadLine() (string, error) {
	for {
		if i := bytes.IndexByte(l.buf, '\n'); i >= 0 {
			skip := l.discarding || i > maxLineLength
			line := strings.TrimRight(string(l.buf[:i]), "\r")
			l.buf = append(l.buf[:0], l.buf[i+1:]...)
			l.discarding = false
			if skip {
				continue
			}
			return line, nil
		}
		if l.discarding || len(l.buf) > maxLineLength {
			l.discarding = true
			l.buf = l.buf[:0]
		}
		if l.err != nil {
			return "", l.err
		}

		n, err := l.r.Read(l.chunk)
		if err != nil {
			l.err = err
		}
		if n == 0 {
			if l.err != nil {
				return "", l.err
			}
			return "", ErrReadTimeout
		}
		l.buf = append(l.buf, l.chunk[:n]...)
	}
}
