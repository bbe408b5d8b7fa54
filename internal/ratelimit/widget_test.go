package ratelimit

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tryon/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestWidgetLimiterDisabledAllowsEverything(t *testing.T) {
	limiter, err := NewWidgetLimiter(WidgetLimiterParams{Cfg: config.Config{}, Log: zap.NewNop()})
	require.NoError(t, err)
	assert.False(t, limiter.Enabled())

	res, err := limiter.Allow(context.Background(), "generate", "vto_key")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestWidgetLimiterRequiresRedisWhenEnabled(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, WidgetRate: 1, WidgetBurst: 1}}
	_, err := NewWidgetLimiter(WidgetLimiterParams{Cfg: cfg, Log: zap.NewNop()})
	require.Error(t, err)
}

func TestWidgetLimiterFailOpen(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, WidgetRate: 1, WidgetBurst: 2, FailOpen: true}}
	limiter, err := NewWidgetLimiter(WidgetLimiterParams{Cfg: cfg, Log: zap.NewNop(), Client: unreachableClient(t)})
	require.NoError(t, err)

	res, err := limiter.Allow(context.Background(), "generate", "vto_key")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestWidgetLimiterFailClosed(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, WidgetRate: 1, WidgetBurst: 2}}
	limiter, err := NewWidgetLimiter(WidgetLimiterParams{Cfg: cfg, Log: zap.NewNop(), Client: unreachableClient(t)})
	require.NoError(t, err)

	_, err = limiter.Allow(context.Background(), "generate", "vto_key")
	require.Error(t, err)
}

func TestNilLockerRunsUnguarded(t *testing.T) {
	var locker *Locker
	ran := false
	err := locker.WithLock(context.Background(), "k", time.Second, func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 4*time.Second, bucketTTL(10, 20))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
	assert.Equal(t, time.Second, bucketTTL(0, 1))
}
