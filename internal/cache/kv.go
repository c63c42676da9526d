package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrNoSnapshot 快照不存在或已过期
var ErrNoSnapshot = errors.New("realtime snapshot not found")

// SnapshotStore 实时快照的存取；单元测试中以内存实现替换 Redis
type SnapshotStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

// RedisSnapshotStore 以 SET key payload PX ttl 保存快照
type RedisSnapshotStore struct {
	client *redis.Client
}

// NewRedisSnapshotStore 创建基于 Redis 的快照存储
func NewRedisSnapshotStore(client *redis.Client) *RedisSnapshotStore {
	return &RedisSnapshotStore{client: client}
}

// Load 读取快照；键不存在时返回 ErrNoSnapshot
func (s *RedisSnapshotStore) Load(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	return payload, err
}

// Save 覆盖快照；ttl <= 0 时不过期
func (s *RedisSnapshotStore) Save(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, key, payload, ttl).Err()
}
