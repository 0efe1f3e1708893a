package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func (m *Metrics) registerCacheMetrics() {
	m.CacheDuration = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lpsolver_cache_operation_duration_seconds",
		Help:    "Outcome cache operation latency by backend",
		Buckets: prometheus.ExponentialBuckets(0.00005, 4, 9),
	}, []string{"backend", "operation"})

	m.RedisCommands = m.NewCounterVec(prometheus.CounterOpts{
		Name: "lpsolver_redis_commands_total",
		Help: "Redis commands issued by the outcome cache",
	}, []string{"command", "status"})

	m.BreakerState = m.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lpsolver_circuit_breaker_state",
		Help: "Circuit breaker state (0: closed, 1: half-open, 2: open)",
	}, []string{"name"})
}

// ObserveCacheOp 记录一次缓存后端操作的耗时。
func (m *Metrics) ObserveCacheOp(backend, operation string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CacheDuration.WithLabelValues(backend, operation).Observe(elapsed.Seconds())
}

// ObserveRedisCommand 记录一次 Redis 命令及其结果 (success / error)。
func (m *Metrics) ObserveRedisCommand(command, status string) {
	if m == nil {
		return
	}
	m.RedisCommands.WithLabelValues(command, status).Inc()
}

// SetBreakerState 记录熔断器的当前状态。
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}
