// Package cache 提供了求解结果的缓存抽象和多种实现，包括本地缓存 (bigcache)、
// 分布式缓存 (Redis) 以及二者组合的多级缓存。
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/wyfcoding/lpsolver/breaker"
	"github.com/wyfcoding/lpsolver/config"
	"github.com/wyfcoding/lpsolver/logging"
	"github.com/wyfcoding/lpsolver/metrics"
	"github.com/wyfcoding/lpsolver/redis"
)

// ErrCacheMiss 表示键不存在或已过期。
var ErrCacheMiss = errors.New("cache: miss")

// IsSuccessful 供熔断器判定调用结果：未命中不算后端失败。
func IsSuccessful(err error) bool {
	return err == nil || errors.Is(err, ErrCacheMiss)
}

// Cache 定义缓存接口。值以 JSON 形式存储，Get 的 value 必须是指针。
type Cache interface {
	Get(ctx context.Context, key string, value any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// Deps 是 New 组装缓存时需要的外部依赖，均可为 nil。
type Deps struct {
	Redis   redis.Client
	Breaker *breaker.Breaker
	Logger  *logging.Logger
	Metrics *metrics.Metrics
}

// New 按配置组装缓存。
// 未启用时返回 (nil, nil)；本地与 Redis 同时可用时返回多级缓存。
func New(cfg config.CacheConfig, deps Deps) (Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}

	var local, remote Cache
	if cfg.Local.Enabled {
		bc, err := NewBigCache(cfg.Local, cfg.TTL, deps.Metrics)
		if err != nil {
			return nil, err
		}
		local = bc
	}
	if cfg.Remote && deps.Redis != nil {
		remote = NewRedisCache(deps.Redis, cfg.Prefix, deps.Breaker, deps.Metrics)
	}

	switch {
	case local != nil && remote != nil:
		return NewMultiLevelCache(local, remote, deps.Logger), nil
	case local != nil:
		return local, nil
	case remote != nil:
		return remote, nil
	default:
		return nil, errors.New("cache: enabled but no backend configured")
	}
}
