package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/Jeykison03/Leo-monitor/internal/cache"
	"github.com/Jeykison03/Leo-monitor/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func observation(bpm int, at time.Time) *models.HeartRateObservation {
	return models.NewHeartRateObservation(
		models.BeatEvent{BPM: bpm, At: at, Interval: time.Second},
		models.Subject{PatientID: "user-123", DeviceID: "arduino-uno-r3"},
	)
}

func TestRealtimeCache_LatestWins(t *testing.T) {
	store := newMemorySnapshotStore()
	c := cache.NewRealtimeCache(store, "heartrate:realtime", time.Minute, zap.NewNop())
	ctx := context.Background()

	empty, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, c.Insert(ctx, observation(66, at)))
	require.NoError(t, c.Insert(ctx, observation(91, at.Add(time.Second))))

	got, err := c.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 91, got.HeartRate)
	assert.Equal(t, "user-123", got.PatientID)
	assert.Equal(t, "arduino-uno-r3", got.DeviceID)
	assert.True(t, at.Add(time.Second).Equal(got.LastBeat))
}

func TestRealtimeCache_Expires(t *testing.T) {
	store := newMemorySnapshotStore()
	c := cache.NewRealtimeCache(store, "heartrate:realtime", 10*time.Millisecond, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Insert(ctx, observation(70, time.Now())))
	time.Sleep(20 * time.Millisecond)

	got, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRealtimeCache_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := cache.NewRealtimeCache(cache.NewRedisSnapshotStore(client), "heartrate:realtime", 5*time.Minute, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Insert(ctx, observation(84, time.Now())))
	assert.Equal(t, 5*time.Minute, mr.TTL("heartrate:realtime"))

	got, err := c.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 84, got.HeartRate)

	mr.FastForward(6 * time.Minute)
	got, err = c.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSnapshotStore_MissingAndNoTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := cache.NewRedisSnapshotStore(client)
	ctx := context.Background()

	_, err := store.Load(ctx, "heartrate:realtime")
	assert.ErrorIs(t, err, cache.ErrNoSnapshot)

	require.NoError(t, store.Save(ctx, "heartrate:realtime", []byte(`{"heart_rate":72}`), 0))
	assert.Equal(t, time.Duration(0), mr.TTL("heartrate:realtime"))

	payload, err := store.Load(ctx, "heartrate:realtime")
	require.NoError(t, err)
	assert.JSONEq(t, `{"heart_rate":72}`, string(payload))
}
