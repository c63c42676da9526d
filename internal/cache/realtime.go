// Package cache 在 Redis 中维护最近一次心跳的实时快照，供其它服务读取。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Jeykison03/Leo-monitor/internal/models"
	"go.uber.org/zap"
)

// RealtimeHeartRate 实时缓存内容
type RealtimeHeartRate struct {
	ObservationID string    `json:"observation_id"`
	PatientID     string    `json:"patient_id"`
	DeviceID      string    `json:"device_id,omitempty"`
	HeartRate     int       `json:"heart_rate"`
	LastBeat      time.Time `json:"last_beat"`
}

// RealtimeCache 实时心率缓存；实现 sink.Backend，每条观测覆盖一次
type RealtimeCache struct {
	store  SnapshotStore
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRealtimeCache 创建实时缓存
func NewRealtimeCache(store SnapshotStore, key string, ttl time.Duration, logger *zap.Logger) *RealtimeCache {
	return &RealtimeCache{
		store:  store,
		key:    key,
		ttl:    ttl,
		logger: logger,
	}
}

// Name 后端名称
func (c *RealtimeCache) Name() string {
	return "realtime-cache"
}

// Insert 用观测覆盖实时缓存
func (c *RealtimeCache) Insert(ctx context.Context, obs *models.HeartRateObservation) error {
	data, err := json.Marshal(RealtimeHeartRate{
		ObservationID: obs.ID,
		PatientID:     obs.PatientID(),
		DeviceID:      obs.DeviceID(),
		HeartRate:     obs.HeartRate(),
		LastBeat:      obs.EffectiveDateTime,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal realtime data: %w", err)
	}

	if err := c.store.Save(ctx, c.key, data, c.ttl); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	c.logger.Debug("Updated realtime cache",
		zap.String("key", c.key),
		zap.Int("heart_rate", obs.HeartRate()),
	)
	return nil
}

// Get 读取实时缓存；不存在或已过期时返回 (nil, nil)
func (c *RealtimeCache) Get(ctx context.Context) (*RealtimeHeartRate, error) {
	raw, err := c.store.Load(ctx, c.key)
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}

	var data RealtimeHeartRate
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal realtime data: %w", err)
	}
	return &data, nil
}
