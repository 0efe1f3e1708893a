package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/wyfcoding/lpsolver/config"
	"github.com/wyfcoding/lpsolver/metrics"
)

// BigCache 实现了 `Cache` 接口，使用 `allegro/bigcache` 作为底层存储。
type BigCache struct {
	cache   *bigcache.BigCache
	metrics *metrics.Metrics
}

// NewBigCache 创建并返回一个新的 BigCache 实例。
// BigCache 对所有项统一设置过期时间：优先使用 cfg.LifeWindow，未设置时使用 ttl。
func NewBigCache(cfg config.BigCacheConfig, ttl time.Duration, m *metrics.Metrics) (*BigCache, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = ttl
	}
	if life <= 0 {
		life = 10 * time.Minute
	}

	bc := bigcache.DefaultConfig(life)
	if cfg.CleanWindow > 0 {
		bc.CleanWindow = cfg.CleanWindow
	}
	if cfg.Shards > 0 {
		bc.Shards = cfg.Shards
	}
	if cfg.MaxEntrySize > 0 {
		bc.MaxEntrySize = cfg.MaxEntrySize
	}
	bc.HardMaxCacheSize = cfg.HardMaxCacheSize // MB，0 表示不限
	bc.Verbose = false

	cache, err := bigcache.New(context.Background(), bc)
	if err != nil {
		return nil, fmt.Errorf("初始化 bigcache 失败: %w", err)
	}

	return &BigCache{cache: cache, metrics: m}, nil
}

// Get 从BigCache中获取指定键的值。
func (c *BigCache) Get(_ context.Context, key string, value any) error {
	defer c.observe("get", time.Now())

	data, err := c.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(data, value)
}

// Set 将一个键值对设置到BigCache中。
// BigCache 不支持逐键过期，expiration 被忽略。
func (c *BigCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	defer c.observe("set", time.Now())

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.cache.Set(key, data)
}

// Delete 从BigCache中删除一个或多个键，不存在的键被忽略。
func (c *BigCache) Delete(_ context.Context, keys ...string) error {
	defer c.observe("delete", time.Now())

	for _, key := range keys {
		if err := c.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
			return err
		}
	}
	return nil
}

// Exists 检查BigCache中是否存在指定的键。
func (c *BigCache) Exists(_ context.Context, key string) (bool, error) {
	_, err := c.cache.Get(key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return false, nil
	}
	return false, err
}

// Len 返回当前缓存项数量。
func (c *BigCache) Len() int {
	return c.cache.Len()
}

// Close 关闭BigCache实例，释放其占用的资源。
func (c *BigCache) Close() error {
	return c.cache.Close()
}

func (c *BigCache) observe(op string, start time.Time) {
	c.metrics.ObserveCacheOp("local", op, time.Since(start))
}
