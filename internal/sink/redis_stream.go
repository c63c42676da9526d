package sink

import (
	"context"
	"fmt"

	rediscommon "github.com/Jeykison03/Leo-monitor/common/redis"
	"github.com/Jeykison03/Leo-monitor/internal/models"
	"github.com/go-redis/redis/v8"
)

// RedisStreamSink 将观测以 JSON 追加到 Redis Stream，供下游服务消费
type RedisStreamSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamSink 创建 Redis Stream 后端
func NewRedisStreamSink(client *redis.Client, stream string, maxLen int64) *RedisStreamSink {
	return &RedisStreamSink{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// Name 后端名称
func (s *RedisStreamSink) Name() string {
	return "redis"
}

// Insert XADD 一条观测
func (s *RedisStreamSink) Insert(ctx context.Context, obs *models.HeartRateObservation) error {
	if _, err := rediscommon.PublishJSONToStream(ctx, s.client, s.stream, s.maxLen, obs); err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", s.stream, err)
	}
	return nil
}
