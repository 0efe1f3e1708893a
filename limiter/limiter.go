// Package limiter 提供了求解请求的限流器：本地令牌桶、基于 Redis 的分布式滑动窗口、
// 支持热更新的包装器，以及限制同时求解数量的并发信号量。
package limiter

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate" // 导入基于令牌桶算法的限流库。

	"github.com/wyfcoding/lpsolver/config"
	lpredis "github.com/wyfcoding/lpsolver/redis"
)

// Limiter 接口定义了限流器的通用行为。
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error) // 检查是否允许请求通过。
}

// LocalLimiter 是一个基于令牌桶算法的本地限流器，key 被忽略，即进程级全局限流。
type LocalLimiter struct {
	limiter *rate.Limiter
}

// NewLocalLimiter 创建并返回一个新的 LocalLimiter 实例。
// r: 每秒生成的令牌数；b: 令牌桶容量，即允许的瞬时突发请求数。
func NewLocalLimiter(r rate.Limit, b int) *LocalLimiter {
	return &LocalLimiter{
		limiter: rate.NewLimiter(r, b),
	}
}

// Allow 尝试从令牌桶中获取一个令牌。
func (l *LocalLimiter) Allow(_ context.Context, _ string) (bool, error) {
	return l.limiter.Allow(), nil
}

// RedisLimiter 是一个基于 Redis 实现的分布式限流器。
// 它使用 ZSet 实现滑动窗口算法，在多个服务副本之间共享限流状态。
type RedisLimiter struct {
	client lpredis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewRedisLimiter 创建并返回一个新的 RedisLimiter 实例。
// limit: 时间窗口内允许的最大请求数；window: 时间窗口长度。
func NewRedisLimiter(client lpredis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

// Allow 实现了基于 Redis 的滑动窗口算法：
// 1. 移除时间窗口之外的旧请求记录；
// 2. 统计当前时间窗口内的请求数量；
// 3. 记录当前请求并设置过期时间。
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - l.window.Nanoseconds()
	fullKey := l.prefix + key

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, fullKey, "0", strconv.FormatInt(windowStart, 10))
	card := pipe.ZCard(ctx, fullKey)
	pipe.ZAdd(ctx, fullKey, redis.Z{
		Score:  float64(now),
		Member: now,
	})
	pipe.Expire(ctx, fullKey, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	// ZCard 在 ZAdd 之前执行，count 不含当前请求。
	return card.Val() < int64(l.limit), nil
}

// FromConfig 按 ratelimit 配置构造限流器；未启用或速率为 0 时返回 nil (不限流)。
// backend 为 redis 但 client 为 nil 时退回本地令牌桶。
func FromConfig(cfg config.RateLimitConfig, client lpredis.Client) Limiter {
	if !cfg.Enabled || cfg.Rate <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = max(1, int(cfg.Rate))
	}
	if cfg.Backend == "redis" && client != nil {
		return NewRedisLimiter(client, "lpsolver:ratelimit:", burst, time.Duration(float64(burst)/cfg.Rate*float64(time.Second)))
	}
	return NewLocalLimiter(rate.Limit(cfg.Rate), burst)
}
