package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	logpkg "github.com/Jeykison03/Leo-monitor/common/logger"
	"github.com/Jeykison03/Leo-monitor/internal/config"
	"github.com/Jeykison03/Leo-monitor/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	logger, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-heartrate")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting wisefido-heartrate service",
		zap.String("version", "1.0.0"),
		zap.Bool("simulation", cfg.Serial.Simulation),
		zap.String("serial_port", cfg.Serial.Port),
		zap.Int("baud_rate", cfg.Serial.BaudRate),
		zap.String("http_addr", cfg.HTTP.Addr),
		zap.Strings("sink_backends", cfg.Sink.Backends),
	)

	// 创建服务
	heartRateService, err := service.NewHeartRateService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create heart rate service", zap.Error(err))
	}

	// 启动服务
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := heartRateService.Start(ctx); err != nil {
		logger.Fatal("Failed to start heart rate service", zap.Error(err))
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := heartRateService.Stop(stopCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Service stopped")
}
