package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/lpsolver/config"
	"github.com/wyfcoding/lpsolver/limiter"
	"github.com/wyfcoding/lpsolver/logging"
	"github.com/wyfcoding/lpsolver/metrics"
	"github.com/wyfcoding/lpsolver/middleware"
	"github.com/wyfcoding/lpsolver/server"
)

// EngineDeps 组装 HTTP 引擎所需的依赖，Metrics 与 Limiter 可为 nil。
type EngineDeps struct {
	Handler *Handler
	Logger  *logging.Logger
	Metrics *metrics.Metrics
	Limiter limiter.Limiter
}

// NewEngine 按固定顺序装配中间件并挂载路由。
// 指标开启且未单独监听时，指标接口挂载在同一服务的 cfg.Metrics.Path 上。
func NewEngine(cfg *config.Config, deps EngineDeps) (*gin.Engine, error) {
	quiet := []string{HealthzPath, ReadyzPath}
	mountMetrics := deps.Metrics != nil && cfg.Metrics.Enabled && cfg.Metrics.Addr == ""
	if mountMetrics {
		quiet = append(quiet, metricsPath(cfg))
	}

	engine, err := server.NewDefaultGinEngine(cfg.Server.HTTP.TrustedProxies,
		middleware.Recovery(deps.Logger),
		middleware.RequestID(),
		middleware.RequestContextEnricher(),
		middleware.TracingMiddleware(cfg.Server.Name, quiet...),
		middleware.TraceIDHeader(),
		middleware.Logger(deps.Logger.WithModule("access"), cfg.Log.SlowThreshold),
		middleware.HTTPMetricsMiddlewareWithOptions(deps.Metrics, middleware.MetricsOptions{SkipPaths: quiet}),
		middleware.MaxBodyBytes(cfg.Server.HTTP.MaxBodyBytes),
		middleware.TimeoutMiddleware(cfg.Server.RequestTimeout),
		middleware.HTTPErrorHandler(),
	)
	if err != nil {
		return nil, err
	}

	deps.Handler.Register(engine, middleware.RateLimitMiddleware(deps.Limiter, deps.Logger))
	if mountMetrics {
		engine.GET(metricsPath(cfg), gin.WrapH(deps.Metrics.Handler()))
	}
	return engine, nil
}

func metricsPath(cfg *config.Config) string {
	if cfg.Metrics.Path == "" {
		return "/metrics"
	}
	return cfg.Metrics.Path
}
