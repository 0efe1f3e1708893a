package limiter

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// SemaphoreLimiter 限制同时执行的求解数量，n <= 0 或 nil 接收者表示不限。
type SemaphoreLimiter struct {
	sem      *semaphore.Weighted
	inFlight atomic.Int64
}

// NewSemaphoreLimiter 创建容量为 n 的并发限制器。
func NewSemaphoreLimiter(n int) *SemaphoreLimiter {
	if n <= 0 {
		return &SemaphoreLimiter{}
	}
	return &SemaphoreLimiter{sem: semaphore.NewWeighted(int64(n))}
}

func (l *SemaphoreLimiter) enabled() bool {
	return l != nil && l.sem != nil
}

// InFlight 返回当前持有的令牌数。
func (l *SemaphoreLimiter) InFlight() int {
	if !l.enabled() {
		return 0
	}
	return int(l.inFlight.Load())
}

// Acquire 阻塞等待令牌，ctx 结束时返回 ctx.Err()。
func (l *SemaphoreLimiter) Acquire(ctx context.Context) error {
	if !l.enabled() {
		return nil
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.inFlight.Add(1)
	return nil
}

// TryAcquire 不等待，令牌用尽时返回 false。
func (l *SemaphoreLimiter) TryAcquire() bool {
	if !l.enabled() {
		return true
	}
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.inFlight.Add(1)
	return true
}

// Release 归还令牌。未持有令牌时的释放只记录告警，不会 panic。
func (l *SemaphoreLimiter) Release() {
	if !l.enabled() {
		return
	}
	for {
		n := l.inFlight.Load()
		if n == 0 {
			slog.Warn("concurrency limiter release without acquire")
			return
		}
		if l.inFlight.CompareAndSwap(n, n-1) {
			l.sem.Release(1)
			return
		}
	}
}
