package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Jeykison03/Leo-monitor/common/config"
	"github.com/Jeykison03/Leo-monitor/internal/detector"
)

// 观测数据写入后端名称
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendMQTT     = "mqtt"
	BackendFHIR     = "fhir"
)

// ErrInvalidConfig 配置校验失败
var ErrInvalidConfig = errors.New("invalid config")

// Config 心率监测服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	// 数据源（串口或模拟）
	Serial struct {
		Port         string
		BaudRate     int
		ReadTimeout  time.Duration
		RetryDelay   time.Duration
		Simulation   bool
		SimSeed      int64
		SamplePeriod time.Duration
	}

	Detector detector.Config

	// 实时推送
	Stream struct {
		TickInterval time.Duration
		WriteTimeout time.Duration
	}

	HTTP struct {
		Addr            string
		ShutdownTimeout time.Duration
	}

	// 观测数据写入
	Sink struct {
		Backends          []string
		QueueSize         int
		FHIRBaseURL       string
		FHIRTimeout       time.Duration
		MQTTTopic         string // 含一个 %s 占位符（设备 ID）
		RedisStream       string
		RedisStreamMaxLen int64
	}

	// Redis 实时缓存（最近一次心跳）
	Cache struct {
		Enabled     bool
		RealtimeKey string
		RealtimeTTL time.Duration
	}

	Patient struct {
		ID            string
		Display       string
		DeviceID      string
		DeviceDisplay string
	}

	HighBPMWarn     int
	MetricsInterval time.Duration

	Log struct {
		Level  string
		Format string
	}
}

// Load 从环境变量加载配置并校验
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "heartrate"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 10
	cfg.Database.MaxIdle = 2
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "wisefido-heartrate"
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Serial.Port = getEnv("SERIAL_PORT", "/dev/ttyACM0")
	cfg.Serial.BaudRate = getEnvInt("SERIAL_BAUD", 9600)
	cfg.Serial.ReadTimeout = getEnvDuration("SERIAL_READ_TIMEOUT", time.Second)
	cfg.Serial.RetryDelay = getEnvDuration("SERIAL_RETRY_DELAY", 5*time.Second)
	cfg.Serial.Simulation = getEnvBool("SIMULATION_MODE", false)
	cfg.Serial.SimSeed = int64(getEnvInt("SIMULATION_SEED", 0))
	cfg.Serial.SamplePeriod = getEnvDuration("SIMULATION_SAMPLE_PERIOD", 10*time.Millisecond)

	cfg.Detector = detector.DefaultConfig()
	cfg.Detector.ThresholdHigh = getEnvInt("PULSE_THRESHOLD_HIGH", cfg.Detector.ThresholdHigh)
	cfg.Detector.ThresholdLow = getEnvInt("PULSE_THRESHOLD_LOW", cfg.Detector.ThresholdLow)
	cfg.Detector.Refractory = time.Duration(getEnvInt("PULSE_REFRACTORY_MS", int(cfg.Detector.Refractory/time.Millisecond))) * time.Millisecond
	cfg.Detector.BPMMin = getEnvInt("PULSE_BPM_MIN", cfg.Detector.BPMMin)
	cfg.Detector.BPMMax = getEnvInt("PULSE_BPM_MAX", cfg.Detector.BPMMax)
	cfg.Detector.InitialBPM = getEnvInt("PULSE_INITIAL_BPM", cfg.Detector.InitialBPM)

	cfg.Stream.TickInterval = getEnvDuration("STREAM_TICK_INTERVAL", 20*time.Millisecond)
	cfg.Stream.WriteTimeout = getEnvDuration("STREAM_WRITE_TIMEOUT", 5*time.Second)

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.HTTP.ShutdownTimeout = getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 5*time.Second)

	cfg.Sink.Backends = getEnvList("SINK_BACKENDS", []string{BackendPostgres})
	cfg.Sink.QueueSize = getEnvInt("SINK_QUEUE_SIZE", 256)
	cfg.Sink.FHIRBaseURL = getEnv("FHIR_BASE_URL", "")
	cfg.Sink.FHIRTimeout = getEnvDuration("FHIR_TIMEOUT", 10*time.Second)
	cfg.Sink.MQTTTopic = getEnv("MQTT_TOPIC_BEAT", "heartrate/%s/beat")
	cfg.Sink.RedisStream = getEnv("REDIS_STREAM", "heartrate:observations")
	cfg.Sink.RedisStreamMaxLen = int64(getEnvInt("REDIS_STREAM_MAXLEN", 10000))

	cfg.Cache.Enabled = getEnvBool("REDIS_REALTIME_ENABLED", false)
	cfg.Cache.RealtimeKey = getEnv("REDIS_REALTIME_KEY", "heartrate:realtime")
	cfg.Cache.RealtimeTTL = getEnvDuration("REDIS_REALTIME_TTL", 5*time.Minute)

	cfg.Patient.ID = getEnv("PATIENT_ID", "user-123")
	cfg.Patient.Display = getEnv("PATIENT_DISPLAY", "")
	cfg.Patient.DeviceID = getEnv("DEVICE_ID", "arduino-uno-r3")
	cfg.Patient.DeviceDisplay = getEnv("DEVICE_DISPLAY", "Pulse sensor")

	cfg.HighBPMWarn = getEnvInt("PULSE_HIGH_BPM_WARN", 100)
	cfg.MetricsInterval = getEnvDuration("METRICS_REPORT_INTERVAL", 60*time.Second)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := c.Detector.Validate(); err != nil {
		return fmt.Errorf("%w: detector: %v", ErrInvalidConfig, err)
	}
	if !c.Serial.Simulation && c.Serial.Port == "" {
		return fmt.Errorf("%w: SERIAL_PORT is required unless SIMULATION_MODE is set", ErrInvalidConfig)
	}
	if !c.Serial.Simulation && c.Serial.BaudRate <= 0 {
		return fmt.Errorf("%w: SERIAL_BAUD must be positive", ErrInvalidConfig)
	}
	if c.Stream.TickInterval <= 0 {
		return fmt.Errorf("%w: STREAM_TICK_INTERVAL must be positive", ErrInvalidConfig)
	}
	if c.Sink.QueueSize <= 0 {
		return fmt.Errorf("%w: SINK_QUEUE_SIZE must be positive", ErrInvalidConfig)
	}
	for _, b := range c.Sink.Backends {
		switch b {
		case BackendPostgres, BackendMemory, BackendRedis, BackendMQTT:
		case BackendFHIR:
			if c.Sink.FHIRBaseURL == "" {
				return fmt.Errorf("%w: FHIR_BASE_URL is required for the fhir backend", ErrInvalidConfig)
			}
		default:
			return fmt.Errorf("%w: unknown sink backend %q", ErrInvalidConfig, b)
		}
	}
	if c.HasBackend(BackendMQTT) && strings.Count(c.Sink.MQTTTopic, "%s") != 1 {
		return fmt.Errorf("%w: MQTT_TOPIC_BEAT must contain exactly one %%s", ErrInvalidConfig)
	}
	if c.Patient.ID == "" {
		return fmt.Errorf("%w: PATIENT_ID is required", ErrInvalidConfig)
	}
	return nil
}

// HasBackend 是否启用了指定的写入后端
func (c *Config) HasBackend(name string) bool {
	for _, b := range c.Sink.Backends {
		if b == name {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList 逗号分隔列表，去除空项并转为小写
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
