package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wyfcoding/lpsolver/breaker"
	"github.com/wyfcoding/lpsolver/metrics"
	"github.com/wyfcoding/lpsolver/redis"
	"github.com/wyfcoding/lpsolver/xerrors"
)

// RedisCache 使用 Redis 实现 Cache，所有命令都经过熔断器。
// 后端故障与熔断统一包装为 xerrors.ErrCacheUnavailable。
type RedisCache struct {
	client  redis.Client
	prefix  string
	cb      *breaker.Breaker
	metrics *metrics.Metrics
}

// NewRedisCache 创建 RedisCache。cb 为 nil 时不做熔断保护。
func NewRedisCache(client redis.Client, prefix string, cb *breaker.Breaker, m *metrics.Metrics) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, cb: cb, metrics: m}
}

// WithPrefix 返回共享底层客户端与熔断器、但使用新前缀的 RedisCache。
func (c *RedisCache) WithPrefix(prefix string) *RedisCache {
	return &RedisCache{client: c.client, prefix: prefix, cb: c.cb, metrics: c.metrics}
}

func (c *RedisCache) buildKey(key string) string {
	return c.prefix + key
}

// Get 从缓存中获取值。
func (c *RedisCache) Get(ctx context.Context, key string, value any) error {
	defer c.observe("get", time.Now())

	data, err := breaker.ExecuteTyped(c.cb, func() ([]byte, error) {
		data, err := c.client.Get(ctx, c.buildKey(key)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return data, err
	})
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return ErrCacheMiss
		}
		return unavailable(err)
	}
	return json.Unmarshal(data, value)
}

// Set 设置缓存值，value 会被 JSON 序列化后存储。
func (c *RedisCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	defer c.observe("set", time.Now())

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	_, err = c.cb.Execute(func() (any, error) {
		return nil, c.client.Set(ctx, c.buildKey(key), data, expiration).Err()
	})
	return unavailable(err)
}

// Delete 从缓存中删除值。
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	defer c.observe("delete", time.Now())

	if len(keys) == 0 {
		return nil
	}
	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = c.buildKey(key)
	}

	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.client.Del(ctx, fullKeys...).Err()
	})
	return unavailable(err)
}

// Exists 检查 key 是否存在。
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	defer c.observe("exists", time.Now())

	ok, err := breaker.ExecuteTyped(c.cb, func() (bool, error) {
		n, err := c.client.Exists(ctx, c.buildKey(key)).Result()
		return n > 0, err
	})
	if err != nil {
		return false, unavailable(err)
	}
	return ok, nil
}

// Close 关闭 Redis 客户端。
func (c *RedisCache) Close() error {
	slog.Info("正在关闭 Redis 缓存连接...")
	return c.client.Close()
}

func (c *RedisCache) observe(op string, start time.Time) {
	c.metrics.ObserveCacheOp("redis", op, time.Since(start))
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return xerrors.ErrCacheUnavailable.WithCause(err)
}
