package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/Jeykison03/Leo-monitor/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// FHIR 服务器熔断参数
const (
	fhirBreakerFailures = 5
	fhirBreakerTimeout  = 30 * time.Second
)

// FHIRSink 将观测以 FHIR Observation 资源 POST 到 FHIR 服务器
type FHIRSink struct {
	httpClient *resty.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewFHIRSink 创建 FHIR 后端
func NewFHIRSink(baseURL string, timeout time.Duration, logger *zap.Logger) *FHIRSink {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/fhir+json").
		SetHeader("Accept", "application/fhir+json")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "fhir",
		Timeout: fhirBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= fhirBreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("FHIR circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &FHIRSink{
		httpClient: client,
		breaker:    breaker,
		logger:     logger,
	}
}

// Name 后端名称
func (s *FHIRSink) Name() string {
	return "fhir"
}

// Insert POST /Observation；熔断打开时直接返回 gobreaker.ErrOpenState
func (s *FHIRSink) Insert(ctx context.Context, obs *models.HeartRateObservation) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		resp, err := s.httpClient.R().
			SetContext(ctx).
			SetBody(obs).
			Post("/Observation")
		if err != nil {
			return nil, fmt.Errorf("failed to call FHIR server: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("FHIR server returned %d: %s", resp.StatusCode(), resp.String())
		}
		return nil, nil
	})
	return err
}

func (s *FHIRSink) state() gobreaker.State {
	return s.breaker.State()
}
