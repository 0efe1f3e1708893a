package app

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"

	"github.com/wyfcoding/lpsolver/breaker"
	"github.com/wyfcoding/lpsolver/cache"
	"github.com/wyfcoding/lpsolver/config"
	"github.com/wyfcoding/lpsolver/health"
	"github.com/wyfcoding/lpsolver/httpapi"
	"github.com/wyfcoding/lpsolver/idgen"
	"github.com/wyfcoding/lpsolver/limiter"
	"github.com/wyfcoding/lpsolver/logging"
	"github.com/wyfcoding/lpsolver/metrics"
	"github.com/wyfcoding/lpsolver/redis"
	"github.com/wyfcoding/lpsolver/rpc"
	"github.com/wyfcoding/lpsolver/server"
	"github.com/wyfcoding/lpsolver/solver"
	"github.com/wyfcoding/lpsolver/tracing"
)

// Builder 按配置组装求解服务进程：日志、追踪、指标、缓存、限流、HTTP 与 gRPC 服务器。
type Builder struct {
	configPath string
	version    string
	logger     *logging.Logger
}

// NewBuilder 创建一个新的应用构建器，configPath 为空时只使用默认值与环境变量。
func NewBuilder(configPath string) *Builder {
	return &Builder{configPath: configPath, version: "dev"}
}

// WithVersion 设置版本号，用于构建信息指标与启动日志。
func (b *Builder) WithVersion(v string) *Builder {
	b.version = v
	return b
}

// WithLogger 使用给定的日志记录器，替代按配置创建的实例。
func (b *Builder) WithLogger(l *logging.Logger) *Builder {
	b.logger = l
	return b
}

// components 是 Build 过程中创建的共享依赖。
type components struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *metrics.Metrics
	redis   redis.Client
	limiter *limiter.DynamicLimiter
	solver  *solver.Service
	ready   *health.Registry
}

// Build 构建并组装完整的 App 实例。任何一步失败都会释放已创建的资源。
func (b *Builder) Build() (_ *App, err error) {
	var opts []Option
	defer func() {
		if err != nil {
			runCleanups(opts)
		}
	}()

	var cfg config.Config
	if err := config.Load(b.configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.Server.HTTP.Enabled && !cfg.Server.GRPC.Enabled {
		return nil, errors.New("no server enabled: set server.http.enabled or server.grpc.enabled")
	}

	c := &components{cfg: &cfg, logger: b.initLogger(&cfg)}

	if err := idgen.Init(cfg.Snowflake); err != nil {
		return nil, fmt.Errorf("failed to init id generator: %w", err)
	}

	shutdownTracer, err := tracing.InitTracer(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracer: %w", err)
	}
	opts = append(opts, WithHook(Hook{Name: "tracer", OnStop: shutdownTracer}))

	c.metrics = metrics.NewMetrics(cfg.Server.Name)
	c.metrics.RegisterBuildInfo(cfg.Server.Name, b.version)
	if cfg.Metrics.Enabled && cfg.Metrics.Addr != "" {
		opts = append(opts, WithCleanup("metrics", c.metrics.ExposeHTTP(cfg.Metrics.Addr)))
	}

	if needsRedis(&cfg) {
		client, cleanup, err := redis.NewClient(&cfg.Redis, c.logger, c.metrics)
		if err != nil {
			return nil, err
		}
		c.redis = client
		opts = append(opts, WithCleanup("redis", cleanup))
	}

	outcomes, err := cache.New(cfg.Cache, cache.Deps{
		Redis: c.redis,
		Breaker: breaker.NewBreaker(breaker.Settings{
			Name:         "outcome-cache",
			Config:       cfg.Breaker,
			IsSuccessful: cache.IsSuccessful,
		}, c.metrics),
		Logger:  c.logger,
		Metrics: c.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init cache: %w", err)
	}

	solverOpts := []solver.Option{
		solver.WithLogger(c.logger.WithModule("solver")),
		solver.WithMetrics(c.metrics),
		solver.WithSlowThreshold(cfg.Log.SlowThreshold),
		solver.WithConfig(cfg.Solver),
	}
	if outcomes != nil {
		opts = append(opts, WithHook(Hook{Name: "cache", OnStop: func(context.Context) error { return outcomes.Close() }}))
		solverOpts = append(solverOpts, solver.WithCache(outcomes), solver.WithCacheTTL(cfg.Cache.TTL))
	}
	c.solver = solver.New(solverOpts...)
	c.limiter = limiter.NewDynamicLimiter(limiter.FromConfig(cfg.RateLimit, c.redis))

	c.ready = health.NewRegistry(0)
	c.ready.Register("solver", health.SolverChecker(c.solver.Options))
	if c.redis != nil {
		c.ready.Register("redis", health.RedisChecker(c.redis))
	}

	config.RegisterReloadHook(c.onReload)

	servers, err := c.servers()
	if err != nil {
		return nil, err
	}
	opts = append(opts,
		WithServer(servers...),
		WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		WithVersion(b.version),
	)

	return New(cfg.Server.Name, c.logger, opts...), nil
}

func (b *Builder) initLogger(cfg *config.Config) *logging.Logger {
	logger := b.logger
	if logger == nil {
		logger = logging.NewFromConfig(logging.Config{
			Service:    cfg.Server.Name,
			Module:     "app",
			Level:      cfg.Log.Level,
			Format:     cfg.Log.Format,
			File:       cfg.Log.File,
			Stderr:     cfg.Log.Stderr,
			MaxSize:    cfg.Log.MaxSize,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAge,
			Compress:   cfg.Log.Compress,
		})
	}
	logging.SetDefault(logger)
	return logger
}

// needsRedis 仅在二级缓存或分布式限流启用时连接 Redis。
func needsRedis(cfg *config.Config) bool {
	remoteCache := cfg.Cache.Enabled && cfg.Cache.Remote
	sharedLimit := cfg.RateLimit.Enabled && cfg.RateLimit.Backend == "redis"
	return remoteCache || sharedLimit
}

// onReload 将热更新的配置应用到日志级别、引擎参数与限流器。
func (c *components) onReload(next *config.Config) {
	logging.SetLevel(next.Log.Level)
	c.solver.UpdateOptions(solver.OptionsFromConfig(next.Solver))
	c.limiter.UpdateConfig(next.RateLimit, c.redis)
	c.logger.Info("config reloaded", "log_level", next.Log.Level, "ratelimit_enabled", next.RateLimit.Enabled)
}

func (c *components) servers() ([]server.Server, error) {
	cfg := c.cfg
	var servers []server.Server

	if cfg.Server.HTTP.Enabled {
		engine, err := httpapi.NewEngine(cfg, httpapi.EngineDeps{
			Handler: httpapi.NewHandler(c.solver, c.ready),
			Logger:  c.logger,
			Metrics: c.metrics,
			Limiter: c.limiter,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build http engine: %w", err)
		}
		servers = append(servers, server.NewGinServer(engine, cfg.Server.HTTP.Addr, c.logger, server.HTTPOptions(cfg.Server)))
	}

	if cfg.Server.GRPC.Enabled {
		interceptors := rpc.Interceptors(cfg.Server, rpc.InterceptorDeps{
			Logger:        c.logger,
			Metrics:       c.metrics,
			Limiter:       c.limiter,
			SlowThreshold: cfg.Log.SlowThreshold,
		})
		servers = append(servers, server.NewGRPCServer(cfg.Server.GRPC.Addr, c.logger, func(s *grpc.Server) {
			rpc.Register(s, c.solver)
			health.RegisterGRPCHealthServer(s, rpc.ServiceName, c.ready)
		}, interceptors, server.GRPCOptions(cfg.Server)))
	}

	return servers, nil
}

// runCleanups 在构建失败时逆序释放已创建的资源。
func runCleanups(opts []Option) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	for i := len(o.hooks) - 1; i >= 0; i-- {
		if stop := o.hooks[i].OnStop; stop != nil {
			_ = stop(context.Background())
		}
	}
}
