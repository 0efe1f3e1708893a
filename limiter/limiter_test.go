package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/lpsolver/config"
	"github.com/wyfcoding/lpsolver/redis"
)

func TestLocalLimiter(t *testing.T) {
	l := NewLocalLimiter(1, 2)
	ctx := context.Background()

	for range 2 {
		ok, err := l.Allow(ctx, "")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok, "burst exhausted")
}

func TestFromConfig(t *testing.T) {
	assert.Nil(t, FromConfig(config.RateLimitConfig{Enabled: false, Rate: 10}, nil))
	assert.Nil(t, FromConfig(config.RateLimitConfig{Enabled: true, Rate: 0}, nil))
	assert.IsType(t, &LocalLimiter{}, FromConfig(config.RateLimitConfig{Enabled: true, Rate: 10, Backend: "local"}, nil))
	assert.IsType(t, &LocalLimiter{}, FromConfig(config.RateLimitConfig{Enabled: true, Rate: 10, Backend: "redis"}, nil), "no client")

	client := redis.New(&config.RedisConfig{Addrs: []string{"127.0.0.1:1"}}, nil)
	t.Cleanup(func() { _ = client.Close() })
	rl, ok := FromConfig(config.RateLimitConfig{Enabled: true, Rate: 100, Burst: 50, Backend: "redis"}, client).(*RedisLimiter)
	require.True(t, ok)
	assert.Equal(t, 50, rl.limit)
	assert.Equal(t, 500*time.Millisecond, rl.window)
}

func TestRedisLimiterUnreachable(t *testing.T) {
	client := redis.New(&config.RedisConfig{Addrs: []string{"127.0.0.1:1"}, DialTimeout: 50 * time.Millisecond}, nil)
	t.Cleanup(func() { _ = client.Close() })

	ok, err := NewRedisLimiter(client, "test:", 10, time.Second).Allow(context.Background(), "solve")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestDynamicLimiter(t *testing.T) {
	ctx := context.Background()
	d := NewDynamicLimiter(nil)
	assert.False(t, d.Enabled())
	for range 5 {
		ok, err := d.Allow(ctx, "")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	d.UpdateConfig(config.RateLimitConfig{Enabled: true, Rate: 1, Burst: 1}, nil)
	assert.True(t, d.Enabled())
	ok, _ := d.Allow(ctx, "")
	assert.True(t, ok)
	ok, _ = d.Allow(ctx, "")
	assert.False(t, ok)

	d.UpdateConfig(config.RateLimitConfig{Enabled: false}, nil)
	ok, _ = d.Allow(ctx, "")
	assert.True(t, ok)

	var none *DynamicLimiter
	ok, err := none.Allow(ctx, "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSemaphoreLimiter(t *testing.T) {
	l := NewSemaphoreLimiter(1)
	require.NoError(t, l.Acquire(context.Background()))
	assert.Equal(t, 1, l.InFlight())
	assert.False(t, l.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Acquire(ctx), context.DeadlineExceeded)

	l.Release()
	assert.True(t, l.TryAcquire())
	l.Release()
	l.Release() // 多余的释放只记录告警

	off := NewSemaphoreLimiter(0)
	assert.True(t, off.TryAcquire())
	assert.Equal(t, 0, off.InFlight())
}
