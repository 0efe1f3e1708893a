package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/lpsolver/logging"
	"github.com/wyfcoding/lpsolver/tracing"
)

// MultiLevelCache 组合进程内 L1 与 Redis L2。
// 读：L1 未命中再查 L2，L2 命中回填 L1；写：先 L1 后 L2，只有 L2 的写入错误返回给调用方，
// 因此 Redis 故障时本进程仍能复用自己算过的结果。
type MultiLevelCache struct {
	l1, l2 Cache
	logger *logging.Logger
}

func NewMultiLevelCache(l1, l2 Cache, logger *logging.Logger) *MultiLevelCache {
	if logger == nil {
		logger = logging.Default()
	}
	return &MultiLevelCache{l1: l1, l2: l2, logger: logger.WithModule("cache")}
}

func (c *MultiLevelCache) Get(ctx context.Context, key string, value any) error {
	ctx, span := tracing.StartSpan(ctx, "cache.get")
	defer span.End()
	tracing.AddTag(ctx, "cache.key", key)

	if err := c.l1.Get(ctx, key, value); err == nil {
		tracing.AddTag(ctx, "cache.level", "l1")
		return nil
	}

	err := c.l2.Get(ctx, key, value)
	switch {
	case err == nil:
		tracing.AddTag(ctx, "cache.level", "l2")
		// 过期时间取 L1 自身的默认值。
		if err := c.l1.Set(ctx, key, value, 0); err != nil {
			c.logger.WarnContext(ctx, "backfill l1 failed", "key", key, "error", err)
		}
		return nil
	case errors.Is(err, ErrCacheMiss):
	default:
		c.logger.WarnContext(ctx, "l2 lookup failed", "key", key, "error", err)
	}
	tracing.AddTag(ctx, "cache.level", "miss")
	return ErrCacheMiss
}

func (c *MultiLevelCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	ctx, span := tracing.StartSpan(ctx, "cache.set")
	defer span.End()
	tracing.AddTag(ctx, "cache.key", key)

	if err := c.l1.Set(ctx, key, value, expiration); err != nil {
		c.logger.WarnContext(ctx, "l1 store failed", "key", key, "error", err)
	}
	if err := c.l2.Set(ctx, key, value, expiration); err != nil {
		tracing.SetError(ctx, err)
		return fmt.Errorf("store l2: %w", err)
	}
	return nil
}

func (c *MultiLevelCache) Delete(ctx context.Context, keys ...string) error {
	return errors.Join(c.l1.Delete(ctx, keys...), c.l2.Delete(ctx, keys...))
}

func (c *MultiLevelCache) Exists(ctx context.Context, key string) (bool, error) {
	if ok, err := c.l1.Exists(ctx, key); err == nil && ok {
		return true, nil
	}
	return c.l2.Exists(ctx, key)
}

// Close 关闭两级缓存，返回全部关闭错误。
func (c *MultiLevelCache) Close() error {
	return errors.Join(c.l1.Close(), c.l2.Close())
}
