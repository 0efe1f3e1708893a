// Package retry 提供带抖动的指数退避重试，用于远程求解调用。
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Func 是一次尝试，attempt 从 0 开始计数。
type Func func(ctx context.Context, attempt int) error

// Config 重试策略。MaxRetries 为 0 时只尝试一次。
type Config struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         float64 // 相对抖动幅度，0.1 表示 ±10%
	MaxRetries     int
}

// DefaultConfig 返回远程求解使用的默认策略。
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
	}
}

// Do 在 fn 失败且 shouldRetry 返回 true 时按退避策略重试。
// shouldRetry 为 nil 时使用 Retryable。ctx 结束后立即返回，错误同时包裹 ctx.Err() 与最后一次失败。
func Do(ctx context.Context, cfg Config, shouldRetry func(error) bool, fn Func) error {
	if shouldRetry == nil {
		shouldRetry = Retryable
	}

	backoff := cfg.InitialBackoff
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if attempt >= cfg.MaxRetries || !shouldRetry(lastErr) {
			break
		}

		timer := time.NewTimer(jitter(backoff, cfg.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry canceled after %d attempts: %w", attempt+1, errors.Join(ctx.Err(), lastErr))
		case <-timer.C:
		}

		if cfg.Multiplier > 1 {
			backoff = time.Duration(float64(backoff) * cfg.Multiplier)
		}
		if cfg.MaxBackoff > 0 {
			backoff = min(backoff, cfg.MaxBackoff)
		}
	}

	if cfg.MaxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("retry failed after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}

func jitter(d time.Duration, ratio float64) time.Duration {
	if ratio <= 0 || d <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * ratio * float64(d)
	return max(0, d+time.Duration(delta))
}

// Retryable 只重试瞬时的传输层错误与限流。
// 模型化结果不是错误，内部缺陷 (Internal) 与参数错误重试也不会改变结果。
func Retryable(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}
