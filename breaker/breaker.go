// Package breaker 提供了基于 gobreaker 的熔断器封装，集成 Prometheus 状态指标与日志。
package breaker

import (
	"errors"
	"log/slog"

	"github.com/sony/gobreaker"

	"github.com/wyfcoding/lpsolver/config"
	"github.com/wyfcoding/lpsolver/metrics"
)

// ErrServiceUnavailable 表示服务当前处于熔断状态。
var ErrServiceUnavailable = errors.New("service unavailable: circuit breaker is open")

// Breaker 封装了 gobreaker 实例。未启用时为直通，nil 值同样可用。
type Breaker struct {
	circuitBreaker *gobreaker.CircuitBreaker
}

// Settings 定义了熔断器的初始化参数。
type Settings struct {
	Name         string
	Config       config.CircuitBreakerConfig
	FailureRatio float64
	MinRequests  uint32
	// IsSuccessful 判断一次调用的错误是否不计为失败，例如缓存未命中。
	IsSuccessful func(err error) bool
}

// NewBreaker 初始化并返回一个新的熔断器封装对象。
// 连续失败达到 MaxFailures，或窗口内失败率达到 FailureRatio 时跳闸。
func NewBreaker(st Settings, m *metrics.Metrics) *Breaker {
	if !st.Config.Enabled {
		return &Breaker{}
	}

	failureRatio := st.FailureRatio
	if failureRatio <= 0 {
		failureRatio = 0.5
	}

	minRequests := st.MinRequests
	if minRequests == 0 {
		minRequests = 5
	}

	maxFailures := st.Config.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	gs := gobreaker.Settings{
		Name:         st.Name,
		MaxRequests:  st.Config.MaxRequests,
		Interval:     st.Config.Interval,
		Timeout:      st.Config.Timeout,
		IsSuccessful: st.IsSuccessful,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= maxFailures {
				return true
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)

			return counts.Requests >= minRequests && ratio >= failureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
			m.SetBreakerState(name, int(to))
		},
	}

	m.SetBreakerState(st.Name, int(gobreaker.StateClosed))

	return &Breaker{circuitBreaker: gobreaker.NewCircuitBreaker(gs)}
}

// Execute 执行受熔断保护的函数。
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	return ExecuteTyped(b, fn)
}

// ExecuteTyped 是 Execute 的泛型版本，提供更好的类型安全。
func ExecuteTyped[T any](b *Breaker, fn func() (T, error)) (T, error) {
	if b == nil || b.circuitBreaker == nil {
		return fn()
	}

	var out T
	_, err := b.circuitBreaker.Execute(func() (any, error) {
		var err error
		out, err = fn()
		return nil, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return out, ErrServiceUnavailable
		}
		return out, err
	}

	return out, nil
}

// State 返回当前状态；未启用时恒为 closed。
func (b *Breaker) State() gobreaker.State {
	if b == nil || b.circuitBreaker == nil {
		return gobreaker.StateClosed
	}
	return b.circuitBreaker.State()
}
