package solver

import (
	"time"

	"github.com/wyfcoding/lpsolver/cache"
	"github.com/wyfcoding/lpsolver/config"
	"github.com/wyfcoding/lpsolver/limiter"
	"github.com/wyfcoding/lpsolver/logging"
	"github.com/wyfcoding/lpsolver/metrics"
	"github.com/wyfcoding/lpsolver/simplex"
)

// Option 配置 Service 的函数式选项。
type Option func(*Service)

// WithLogger 设置日志记录器，默认使用 logging.Default()。
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics 设置指标采集器，nil 表示不采集。
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCache 设置结果缓存，nil 表示不缓存。
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithCacheTTL 设置缓存项的过期时间。
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithOptions 设置引擎的数值策略。
func WithOptions(o simplex.Options) Option {
	return func(s *Service) {
		s.opts.Store(&o)
	}
}

// WithVerify 开启求解后的可行性复核，tol 为 0 时使用 DefaultVerifyTolerance。
func WithVerify(enabled bool, tol float64) Option {
	return func(s *Service) {
		s.verify = enabled
		if tol > 0 {
			s.verifyTol = tol
		}
	}
}

// WithSlowThreshold 设置慢求解告警阈值，0 表示不告警。
func WithSlowThreshold(d time.Duration) Option {
	return func(s *Service) {
		s.slow = d
	}
}

// WithConcurrency 限制同时运行的引擎数量，n <= 0 表示不限。
func WithConcurrency(n int) Option {
	return func(s *Service) {
		s.sem = limiter.NewSemaphoreLimiter(n)
	}
}

// WithConfig 从 solver 配置段设置数值策略与复核选项。
func WithConfig(cfg config.SolverConfig) Option {
	return func(s *Service) {
		WithOptions(OptionsFromConfig(cfg))(s)
		WithVerify(cfg.Verify, cfg.VerifyTolerance)(s)
		WithConcurrency(cfg.MaxConcurrent)(s)
	}
}

// OptionsFromConfig 将配置转换为引擎选项。
func OptionsFromConfig(cfg config.SolverConfig) simplex.Options {
	return simplex.Options{
		Tolerance:            cfg.Tolerance,
		FeasibilityTolerance: cfg.FeasibilityTolerance,
		PivotTolerance:       cfg.PivotTolerance,
		MaxPivots:            cfg.MaxPivots,
		DegenerateLimit:      cfg.DegenerateLimit,
	}
}
