package limiter

import (
	"context"
	"sync/atomic"

	"github.com/wyfcoding/lpsolver/config"
	lpredis "github.com/wyfcoding/lpsolver/redis"
)

type limiterHolder struct {
	limiter Limiter
}

// DynamicLimiter 提供支持热更新的限流器封装，内部限流器为 nil 时放行全部请求。
type DynamicLimiter struct {
	value atomic.Pointer[limiterHolder]
}

// NewDynamicLimiter 创建动态限流器。
func NewDynamicLimiter(initial Limiter) *DynamicLimiter {
	d := &DynamicLimiter{}
	d.Update(initial)
	return d
}

// Update 替换当前限流器实例。
func (d *DynamicLimiter) Update(l Limiter) {
	if d == nil {
		return
	}
	d.value.Store(&limiterHolder{limiter: l})
}

// UpdateConfig 按最新的 ratelimit 配置重建限流器。
func (d *DynamicLimiter) UpdateConfig(cfg config.RateLimitConfig, client lpredis.Client) {
	d.Update(FromConfig(cfg, client))
}

// Enabled 当前是否有生效的限流器。
func (d *DynamicLimiter) Enabled() bool {
	return d.load() != nil
}

// Allow 实现 Limiter 接口。
func (d *DynamicLimiter) Allow(ctx context.Context, key string) (bool, error) {
	limiter := d.load()
	if limiter == nil {
		return true, nil
	}
	return limiter.Allow(ctx, key)
}

func (d *DynamicLimiter) load() Limiter {
	if d == nil {
		return nil
	}
	h := d.value.Load()
	if h == nil {
		return nil
	}
	return h.limiter
}
