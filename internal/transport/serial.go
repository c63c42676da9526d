package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// SerialOpener 真实设备（串口路径 + 波特率）
type SerialOpener struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
}

// Name 数据源名称
func (o *SerialOpener) Name() string {
	return "serial:" + o.Port
}

// Open 打开串口
func (o *SerialOpener) Open(_ context.Context) (Transport, error) {
	port, err := serial.Open(o.Port, &serial.Mode{BaudRate: o.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", o.Port, err)
	}

	timeout := o.ReadTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", o.Port, err)
	}

	return &serialTransport{port: port, lineReader: newLineReader(port)}, nil
}

type serialTransport struct {
	*lineReader
	port      serial.Port
	closeOnce sync.Once
	closeErr  error
}

func (t *serialTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.port.Close()
	})
	return t.closeErr
}
