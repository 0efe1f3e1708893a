package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func (m *Metrics) registerSolverMetrics() {
	m.SolveTotal = m.NewCounterVec(prometheus.CounterOpts{
		Name: "lpsolver_solve_total",
		Help: "Total number of solve calls by outcome",
	}, []string{"outcome"})

	m.SolveDuration = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lpsolver_solve_duration_seconds",
		Help:    "Simplex engine latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"outcome"})

	m.Pivots = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lpsolver_simplex_iterations",
		Help:    "Simplex iterations per solve",
		Buckets: prometheus.ExponentialBuckets(1, 4, 9),
	}, []string{"phase"})

	m.ProblemSize = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lpsolver_problem_size",
		Help:    "Number of variables and constraints per problem",
		Buckets: prometheus.ExponentialBuckets(1, 4, 9),
	}, []string{"dimension"})

	m.CacheRequests = m.NewCounterVec(prometheus.CounterOpts{
		Name: "lpsolver_cache_requests_total",
		Help: "Outcome cache lookups by result",
	}, []string{"result"})
}

// ObserveSolve 记录一次求解的结果与耗时。m 为 nil 时忽略。
func (m *Metrics) ObserveSolve(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SolveTotal.WithLabelValues(outcome).Inc()
	m.SolveDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveIterations 记录各阶段的迭代次数。
func (m *Metrics) ObserveIterations(phase1, phase2, flips int) {
	if m == nil {
		return
	}
	m.Pivots.WithLabelValues("phase1").Observe(float64(phase1))
	m.Pivots.WithLabelValues("phase2").Observe(float64(phase2))
	m.Pivots.WithLabelValues("flip").Observe(float64(flips))
}

// ObserveProblem 记录问题规模。
func (m *Metrics) ObserveProblem(variables, constraints int) {
	if m == nil {
		return
	}
	m.ProblemSize.WithLabelValues("variables").Observe(float64(variables))
	m.ProblemSize.WithLabelValues("constraints").Observe(float64(constraints))
}

// ObserveCache 记录一次缓存查询 (hit / miss / error)。
func (m *Metrics) ObserveCache(result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(result).Inc()
}
