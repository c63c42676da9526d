package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Jeykison03/Leo-monitor/common/database"
	mqttcommon "github.com/Jeykison03/Leo-monitor/common/mqtt"
	rediscommon "github.com/Jeykison03/Leo-monitor/common/redis"
	"github.com/Jeykison03/Leo-monitor/internal/cache"
	"github.com/Jeykison03/Leo-monitor/internal/config"
	"github.com/Jeykison03/Leo-monitor/internal/httpapi"
	"github.com/Jeykison03/Leo-monitor/internal/ingest"
	"github.com/Jeykison03/Leo-monitor/internal/livestate"
	"github.com/Jeykison03/Leo-monitor/internal/models"
	"github.com/Jeykison03/Leo-monitor/internal/sink"
	"github.com/Jeykison03/Leo-monitor/internal/stream"
	"github.com/Jeykison03/Leo-monitor/internal/transport"

	"github.com/benbjohnson/clock"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// HeartRateService 心率监测服务（组合根）
type HeartRateService struct {
	config *config.Config
	logger *zap.Logger
	clock  clock.Clock

	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client

	state      *livestate.State
	dispatcher *sink.Async
	pipeline   *ingest.Pipeline
	connector  *transport.Connector
	publisher  *stream.Publisher
	server     *http.Server
	listener   net.Listener

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHeartRateService 创建心率监测服务
func NewHeartRateService(cfg *config.Config, logger *zap.Logger) (*HeartRateService, error) {
	s := &HeartRateService{
		config: cfg,
		logger: logger,
		clock:  clock.New(),
		state:  livestate.New(),
	}

	backends, querier, err := s.buildBackends()
	if err != nil {
		s.closeClients()
		return nil, err
	}
	s.dispatcher = sink.NewAsync(cfg.Sink.QueueSize, logger.Named("sink"), backends...)

	// 数据源（每个进程只选择一种）
	opener := transport.NewOpener(transport.Options{
		Port:         cfg.Serial.Port,
		BaudRate:     cfg.Serial.BaudRate,
		ReadTimeout:  cfg.Serial.ReadTimeout,
		Simulation:   cfg.Serial.Simulation,
		Seed:         cfg.Serial.SimSeed,
		SamplePeriod: cfg.Serial.SamplePeriod,
	}, s.clock)
	s.connector = transport.NewConnector(opener, cfg.Serial.RetryDelay, s.clock, logger.Named("transport"))

	s.pipeline = ingest.NewPipeline(ingest.Options{
		Detector: cfg.Detector,
		Subject: models.Subject{
			PatientID:      cfg.Patient.ID,
			PatientDisplay: cfg.Patient.Display,
			DeviceID:       cfg.Patient.DeviceID,
			DeviceDisplay:  cfg.Patient.DeviceDisplay,
		},
		HighBPMWarn: cfg.HighBPMWarn,
	}, s.state, s.dispatcher, s.clock, logger.Named("ingest"))

	s.publisher = stream.NewPublisher(s.state, stream.Config{
		TickInterval: cfg.Stream.TickInterval,
		WriteTimeout: cfg.Stream.WriteTimeout,
	}, s.clock, logger.Named("stream"))

	router := httpapi.NewRouter(logger)
	router.RegisterRoutes(httpapi.NewHeartRateHandler(querier, s.clock, logger.Named("httpapi")), s.publisher)
	s.server = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Heart rate service created",
		zap.String("transport", opener.Name()),
		zap.Strings("sink_backends", backendNames(backends)),
		zap.Bool("realtime_cache", cfg.Cache.Enabled),
	)
	return s, nil
}

// buildBackends 按配置创建写入后端；未配置可查询的后端时使用内存仓库
func (s *HeartRateService) buildBackends() ([]sink.Backend, sink.Querier, error) {
	cfg := s.config
	var backends []sink.Backend
	var querier sink.Querier

	for _, name := range cfg.Sink.Backends {
		switch name {
		case config.BackendPostgres:
			db, err := database.NewPostgresDB(&cfg.Database)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
			}
			s.db = db
			repo := sink.NewPostgresRepository(db, s.logger.Named("repository"))
			if err := repo.EnsureSchema(context.Background()); err != nil {
				return nil, nil, err
			}
			backends = append(backends, repo)
			querier = repo

		case config.BackendMemory:
			repo := sink.NewMemoryRepository(sink.DefaultMemoryCapacity)
			backends = append(backends, repo)
			if querier == nil {
				querier = repo
			}

		case config.BackendRedis:
			client, err := s.redisConn()
			if err != nil {
				return nil, nil, err
			}
			backends = append(backends, sink.NewRedisStreamSink(client, cfg.Sink.RedisStream, cfg.Sink.RedisStreamMaxLen))

		case config.BackendMQTT:
			client, err := mqttcommon.NewClient(&cfg.MQTT, s.logger.Named("mqtt"))
			if err != nil {
				return nil, nil, err
			}
			s.mqttClient = client
			backends = append(backends, sink.NewMQTTSink(client, cfg.Sink.MQTTTopic, cfg.MQTT.QoS))

		case config.BackendFHIR:
			backends = append(backends, sink.NewFHIRSink(cfg.Sink.FHIRBaseURL, cfg.Sink.FHIRTimeout, s.logger.Named("fhir")))
		}
	}

	if cfg.Cache.Enabled {
		client, err := s.redisConn()
		if err != nil {
			return nil, nil, err
		}
		store := cache.NewRedisSnapshotStore(client)
		backends = append(backends, cache.NewRealtimeCache(store, cfg.Cache.RealtimeKey, cfg.Cache.RealtimeTTL, s.logger.Named("cache")))
	}

	if querier == nil {
		repo := sink.NewMemoryRepository(sink.DefaultMemoryCapacity)
		backends = append(backends, repo)
		querier = repo
	}
	return backends, querier, nil
}

// redisConn 懒加载 Redis 客户端（写入后端与实时缓存共用）
func (s *HeartRateService) redisConn() (*redis.Client, error) {
	if s.redisClient != nil {
		return s.redisClient, nil
	}
	client := rediscommon.NewRedisClient(&s.config.Redis)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rediscommon.Ping(ctx, client); err != nil {
		_ = rediscommon.Close(client)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	s.redisClient = client
	return client, nil
}

// Start 启动采集、指标报告与 HTTP 服务；监听失败时返回错误
func (s *HeartRateService) Start(ctx context.Context) error {
	s.logger.Info("Starting heart rate service components")

	ln, err := net.Listen("tcp", s.config.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.HTTP.Addr, err)
	}
	s.listener = ln

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.server.BaseContext = func(net.Listener) context.Context { return runCtx }

	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		s.connector.Run(runCtx, s.pipeline)
	}()
	go func() {
		defer s.wg.Done()
		s.pipeline.ReportMetrics(runCtx, s.config.MetricsInterval)
	}()
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped unexpectedly", zap.Error(err))
		}
	}()

	s.logger.Info("Heart rate service started successfully", zap.String("http_addr", ln.Addr().String()))
	return nil
}

// Addr HTTP 实际监听地址（Start 之后有效）
func (s *HeartRateService) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// State 实时状态
func (s *HeartRateService) State() *livestate.State {
	return s.state
}

// Stop 停止服务：关闭 HTTP、停止采集、刷新写入队列、关闭外部连接
func (s *HeartRateService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping heart rate service")

	if s.cancel != nil {
		s.cancel()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.HTTP.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Error shutting down HTTP server", zap.Error(err))
	}
	s.wg.Wait()

	if err := s.dispatcher.Close(shutdownCtx); err != nil {
		s.logger.Warn("Sink queue not fully drained", zap.Error(err))
	}
	stats := s.dispatcher.Stats()
	s.logger.Info("Sink stopped",
		zap.Int64("submitted", stats.Submitted),
		zap.Int64("written", stats.Written),
		zap.Int64("failed", stats.Failed),
		zap.Int64("dropped", stats.Dropped),
	)
	s.logger.Info("Ingest stopped",
		zap.Int64("connect_attempts", s.connector.Attempts()),
		zap.Int64("connect_failures", s.connector.Failures()),
		zap.Bool("connected", s.connector.Connected()),
		zap.Int64("stream_clients_total", s.publisher.Hub().Total()),
		zap.Int("stream_clients_open", s.publisher.Hub().Count()),
	)

	s.closeClients()
	s.logger.Info("Heart rate service stopped")
	return nil
}

func (s *HeartRateService) closeClients() {
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if s.redisClient != nil {
		if err := rediscommon.Close(s.redisClient); err != nil {
			s.logger.Error("Error closing Redis client", zap.Error(err))
		}
	}
	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			s.logger.Error("Error closing database connection", zap.Error(err))
		}
	}
}

func backendNames(backends []sink.Backend) []string {
	names := make([]string, 0, len(backends))
	for _, b := range backends {
		names = append(names, b.Name())
	}
	return names
}
