package ratelimit

import (
	"context"
	"testing"
	"time"

	"toursync/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisWindow(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer client.Close()
	require.NoError(t, Ping(context.Background(), client))

	limiter := NewRedisWindow(client, 2, time.Second)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "desktop")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "desktop")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "desktop")
	require.NoError(t, err)
	assert.False(t, allowed)

	assert.True(t, s.Exists(keyPrefix+"desktop"))
	assert.Greater(t, s.TTL(keyPrefix+"desktop"), time.Duration(0))

	s.FastForward(2 * time.Second)
	allowed, err = limiter.Allow(ctx, "desktop")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisWindowUnavailable(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer client.Close()
	s.Close()

	_, err = NewRedisWindow(client, 1, time.Second).Allow(context.Background(), "k")
	assert.Error(t, err)

	_, err = NewRedisWindow(nil, 1, time.Second).Allow(context.Background(), "k")
	assert.Error(t, err)
}
