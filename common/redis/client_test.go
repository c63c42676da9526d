package redis

import (
	"context"
	"testing"
	"time"

	"github.com/Jeykison03/Leo-monitor/common/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient_AppliesSettings(t *testing.T) {
	mr := miniredis.RunT(t)

	client := NewRedisClient(&config.RedisConfig{Addr: mr.Addr(), DB: 2, PoolSize: 4})
	opts := client.Options()
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 4, opts.PoolSize)
	assert.Equal(t, defaultDialTimeout, opts.DialTimeout)
	assert.Equal(t, defaultIOTimeout, opts.ReadTimeout)

	require.NoError(t, Ping(context.Background(), client))
	require.NoError(t, Close(client))
	assert.Error(t, Ping(context.Background(), client))
}

func TestNewRedisClient_DialTimeoutOverride(t *testing.T) {
	client := NewRedisClient(&config.RedisConfig{Addr: "127.0.0.1:0", DialTimeout: 250 * time.Millisecond})
	defer Close(client)

	assert.Equal(t, 250*time.Millisecond, client.Options().DialTimeout)
}
