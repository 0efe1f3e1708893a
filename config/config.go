// Package config 提供 lpsolver 的配置加载、校验与热更新能力.
// 配置来源按优先级从低到高：内置默认值、TOML 文件、LPSOLVER_ 前缀的环境变量.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/wyfcoding/lpsolver/logging"
)

// EnvPrefix 环境变量前缀，例如 LPSOLVER_SOLVER_MAX_PIVOTS.
const EnvPrefix = "LPSOLVER"

// Config 全局顶级配置结构.
type Config struct {
	Server    ServerConfig         `mapstructure:"server"    toml:"server"`
	Log       LogConfig            `mapstructure:"log"       toml:"log"`
	Solver    SolverConfig         `mapstructure:"solver"    toml:"solver"`
	Cache     CacheConfig          `mapstructure:"cache"     toml:"cache"`
	Redis     RedisConfig          `mapstructure:"redis"     toml:"redis"`
	Breaker   CircuitBreakerConfig `mapstructure:"breaker"   toml:"breaker"`
	Metrics   MetricsConfig        `mapstructure:"metrics"   toml:"metrics"`
	Tracing   TracingConfig        `mapstructure:"tracing"   toml:"tracing"`
	RateLimit RateLimitConfig      `mapstructure:"ratelimit" toml:"ratelimit"`
	Snowflake SnowflakeConfig      `mapstructure:"snowflake" toml:"snowflake"`
	Version   string               `mapstructure:"version"   toml:"version"`
}

// ServerConfig 定义服务器运行时的基础网络与环境参数.
type ServerConfig struct {
	Name            string        `mapstructure:"name"             toml:"name"             validate:"required"`
	Environment     string        `mapstructure:"environment"      toml:"environment"      validate:"oneof=dev test prod"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" toml:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"  toml:"request_timeout"` // 单个求解请求的截止时间，0 表示不限
	HTTP            struct {
		Enabled           bool          `mapstructure:"enabled"             toml:"enabled"`
		Addr              string        `mapstructure:"addr"                toml:"addr"                validate:"required_if=Enabled true"`
		ReadTimeout       time.Duration `mapstructure:"read_timeout"        toml:"read_timeout"`
		ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" toml:"read_header_timeout"`
		WriteTimeout      time.Duration `mapstructure:"write_timeout"       toml:"write_timeout"`
		IdleTimeout       time.Duration `mapstructure:"idle_timeout"        toml:"idle_timeout"`
		MaxBodyBytes      int64         `mapstructure:"max_body_bytes"      toml:"max_body_bytes"      validate:"gte=0"`
		TrustedProxies    []string      `mapstructure:"trusted_proxies"     toml:"trusted_proxies"`
	} `mapstructure:"http" toml:"http"`
	GRPC struct {
		Enabled              bool                `mapstructure:"enabled"                toml:"enabled"`
		Addr                 string              `mapstructure:"addr"                   toml:"addr"              validate:"required_if=Enabled true"`
		MaxRecvMsgSize       int                 `mapstructure:"max_recv_msg_size"      toml:"max_recv_msg_size" validate:"gte=0"`
		MaxConcurrentStreams uint32              `mapstructure:"max_concurrent_streams" toml:"max_concurrent_streams"`
		Reflection           bool                `mapstructure:"reflection"             toml:"reflection"`
		Keepalive            GRPCKeepaliveConfig `mapstructure:"keepalive"              toml:"keepalive"`
	} `mapstructure:"grpc" toml:"grpc"`
}

// GRPCKeepaliveConfig gRPC 服务端连接保活与强制策略.
type GRPCKeepaliveConfig struct {
	MaxConnectionIdle     time.Duration `mapstructure:"max_connection_idle"      toml:"max_connection_idle"`
	MaxConnectionAge      time.Duration `mapstructure:"max_connection_age"       toml:"max_connection_age"`
	MaxConnectionAgeGrace time.Duration `mapstructure:"max_connection_age_grace" toml:"max_connection_age_grace"`
	Time                  time.Duration `mapstructure:"time"                     toml:"time"`
	Timeout               time.Duration `mapstructure:"timeout"                  toml:"timeout"`
	MinTime               time.Duration `mapstructure:"min_time"                 toml:"min_time"`
	PermitWithoutStream   bool          `mapstructure:"permit_without_stream"    toml:"permit_without_stream"`
}

// LogConfig 定义日志输出、级别与切割策略.
type LogConfig struct {
	Level         string        `mapstructure:"level"          toml:"level"          validate:"oneof=debug info warn error"`
	Format        string        `mapstructure:"format"         toml:"format"         validate:"oneof=json text"`
	File          string        `mapstructure:"file"           toml:"file"`
	Stderr        bool          `mapstructure:"stderr"         toml:"stderr"`
	MaxSize       int           `mapstructure:"max_size"       toml:"max_size"`
	MaxBackups    int           `mapstructure:"max_backups"    toml:"max_backups"`
	MaxAge        int           `mapstructure:"max_age"        toml:"max_age"`
	Compress      bool          `mapstructure:"compress"       toml:"compress"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold" toml:"slow_threshold"` // 慢请求阈值。
}

// SolverConfig 单纯形引擎的数值策略与求解服务选项.
type SolverConfig struct {
	Tolerance            float64 `mapstructure:"tolerance"             toml:"tolerance"             validate:"gte=0,lt=1"`
	FeasibilityTolerance float64 `mapstructure:"feasibility_tolerance" toml:"feasibility_tolerance" validate:"gte=0,lt=1"`
	PivotTolerance       float64 `mapstructure:"pivot_tolerance"       toml:"pivot_tolerance"       validate:"gte=0,lt=1"`
	MaxPivots            int     `mapstructure:"max_pivots"            toml:"max_pivots"            validate:"gte=0"`
	DegenerateLimit      int     `mapstructure:"degenerate_limit"      toml:"degenerate_limit"      validate:"gte=0"`
	MaxConcurrent        int     `mapstructure:"max_concurrent"        toml:"max_concurrent"        validate:"gte=0"` // 同时求解的上限，0 表示不限
	Verify               bool    `mapstructure:"verify"                toml:"verify"`
	VerifyTolerance      float64 `mapstructure:"verify_tolerance"      toml:"verify_tolerance"      validate:"gte=0,lt=1"`
}

// CacheConfig 求解结果缓存配置.
type CacheConfig struct {
	Enabled bool           `mapstructure:"enabled" toml:"enabled"`
	Prefix  string         `mapstructure:"prefix"  toml:"prefix"`
	TTL     time.Duration  `mapstructure:"ttl"     toml:"ttl"`
	Local   BigCacheConfig `mapstructure:"local"   toml:"local"`
	Remote  bool           `mapstructure:"remote"  toml:"remote"` // 是否启用 Redis 二级缓存
}

// BigCacheConfig 高性能本地内存缓存参数.
type BigCacheConfig struct {
	Enabled          bool          `mapstructure:"enabled"             toml:"enabled"`
	LifeWindow       time.Duration `mapstructure:"life_window"         toml:"life_window"`
	CleanWindow      time.Duration `mapstructure:"clean_window"        toml:"clean_window"`
	Shards           int           `mapstructure:"shards"              toml:"shards"              validate:"gte=0"`
	MaxEntrySize     int           `mapstructure:"max_entry_size"      toml:"max_entry_size"      validate:"gte=0"`
	HardMaxCacheSize int           `mapstructure:"hard_max_cache_size" toml:"hard_max_cache_size" validate:"gte=0"`
}

// RedisConfig 定义 Redis 连接与池化参数.
type RedisConfig struct {
	MasterName   string        `mapstructure:"master_name"    toml:"master_name"`
	Password     string        `mapstructure:"password"       toml:"password"`
	Addrs        []string      `mapstructure:"addrs"          toml:"addrs"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"   toml:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"   toml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"  toml:"write_timeout"`
	DB           int           `mapstructure:"db"             toml:"db"`
	PoolSize     int           `mapstructure:"pool_size"      toml:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns" toml:"min_idle_conns"`
}

// CircuitBreakerConfig 定义熔断器（gobreaker）的保护策略.
type CircuitBreakerConfig struct {
	Interval    time.Duration `mapstructure:"interval"     toml:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"      toml:"timeout"`
	MaxRequests uint32        `mapstructure:"max_requests" toml:"max_requests"`
	MaxFailures uint32        `mapstructure:"max_failures" toml:"max_failures"`
	Enabled     bool          `mapstructure:"enabled"      toml:"enabled"`
}

// TracingConfig 分布式链路追踪（OpenTelemetry）配置.
type TracingConfig struct {
	ServiceName  string  `mapstructure:"service_name"  toml:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" toml:"otlp_endpoint" validate:"required_if=Enabled true"`
	SamplerRatio float64 `mapstructure:"sampler_ratio" toml:"sampler_ratio" validate:"gte=0,lte=1"`
	Enabled      bool    `mapstructure:"enabled"       toml:"enabled"`
}

// MetricsConfig 普罗米修斯监控指标暴露配置.
// Addr 为空时指标挂载在 HTTP 服务的 Path 上，否则单独监听.
type MetricsConfig struct {
	Addr    string `mapstructure:"addr"    toml:"addr"`
	Path    string `mapstructure:"path"    toml:"path"`
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
}

// RateLimitConfig 定义令牌桶限流参数.
type RateLimitConfig struct {
	Rate    float64 `mapstructure:"rate"    toml:"rate"    validate:"gte=0"`
	Burst   int     `mapstructure:"burst"   toml:"burst"   validate:"gte=0"`
	Backend string  `mapstructure:"backend" toml:"backend" validate:"oneof=local redis"` // redis 时多副本共享配额
	Enabled bool    `mapstructure:"enabled" toml:"enabled"`
}

// SnowflakeConfig 分布式 ID 生成器参数，用于生成请求 ID.
type SnowflakeConfig struct {
	StartTime string `mapstructure:"start_time" toml:"start_time"`
	Type      string `mapstructure:"type"       toml:"type"       validate:"oneof=snowflake sonyflake"`
	MachineID int64  `mapstructure:"machine_id" toml:"machine_id" validate:"gte=0,lte=1023"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "lpsolver")
	v.SetDefault("server.environment", "dev")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.http.enabled", true)
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.read_timeout", 10*time.Second)
	v.SetDefault("server.http.read_header_timeout", 5*time.Second)
	v.SetDefault("server.http.write_timeout", 30*time.Second)
	v.SetDefault("server.http.idle_timeout", 60*time.Second)
	v.SetDefault("server.http.max_body_bytes", 8<<20)
	v.SetDefault("server.grpc.enabled", true)
	v.SetDefault("server.grpc.addr", ":9090")
	v.SetDefault("server.grpc.max_recv_msg_size", 8<<20)
	v.SetDefault("server.grpc.reflection", true)
	v.SetDefault("server.grpc.keepalive.max_connection_idle", 5*time.Minute)
	v.SetDefault("server.grpc.keepalive.time", 2*time.Minute)
	v.SetDefault("server.grpc.keepalive.timeout", 20*time.Second)
	v.SetDefault("server.grpc.keepalive.min_time", 30*time.Second)
	v.SetDefault("server.grpc.keepalive.permit_without_stream", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 14)
	v.SetDefault("log.slow_threshold", time.Second)

	v.SetDefault("solver.tolerance", 1e-9)
	v.SetDefault("solver.feasibility_tolerance", 1e-7)
	v.SetDefault("solver.pivot_tolerance", 1e-9)
	v.SetDefault("solver.max_pivots", 0)
	v.SetDefault("solver.degenerate_limit", 50)
	v.SetDefault("solver.max_concurrent", 0)
	v.SetDefault("solver.verify", true)
	v.SetDefault("solver.verify_tolerance", 1e-6)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.remote", false)
	v.SetDefault("cache.prefix", "lpsolver:outcome:")
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("cache.local.enabled", true)
	v.SetDefault("cache.local.life_window", 10*time.Minute)
	v.SetDefault("cache.local.clean_window", time.Minute)
	v.SetDefault("cache.local.shards", 64)
	v.SetDefault("cache.local.max_entry_size", 4096)
	v.SetDefault("cache.local.hard_max_cache_size", 256)

	v.SetDefault("redis.addrs", []string{"127.0.0.1:6379"})
	v.SetDefault("redis.dial_timeout", 2*time.Second)
	v.SetDefault("redis.read_timeout", time.Second)
	v.SetDefault("redis.write_timeout", time.Second)
	v.SetDefault("redis.pool_size", 16)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("breaker.enabled", true)
	v.SetDefault("breaker.interval", time.Minute)
	v.SetDefault("breaker.timeout", 30*time.Second)
	v.SetDefault("breaker.max_requests", 5)
	v.SetDefault("breaker.max_failures", 5)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("tracing.service_name", "lpsolver")
	v.SetDefault("tracing.sampler_ratio", 1.0)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.otlp_endpoint", "127.0.0.1:4317")
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.rate", 200)
	v.SetDefault("ratelimit.burst", 400)
	v.SetDefault("ratelimit.backend", "local")
	v.SetDefault("snowflake.type", "snowflake")
	v.SetDefault("snowflake.start_time", "2024-01-01")
}

var (
	mu        sync.Mutex
	current   atomic.Pointer[Config]
	vInstance *viper.Viper
	onReload  []func(*Config)
	validate  = validator.New()
)

// RegisterReloadHook 注册配置热更新回调。回调收到的是校验通过的新配置.
func RegisterReloadHook(hook func(*Config)) {
	if hook == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	onReload = append(onReload, hook)
}

// Load 加载配置到 conf. path 为空时只使用默认值与环境变量.
// 指定了文件时会监听文件变化，重新校验通过后触发 RegisterReloadHook 注册的回调.
func Load(path string, conf *Config) error {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config error: %w", err)
		}
	}

	if err := decode(v, conf); err != nil {
		return err
	}

	mu.Lock()
	vInstance = v
	mu.Unlock()
	snapshot := *conf
	current.Store(&snapshot)

	if path != "" {
		v.OnConfigChange(func(event fsnotify.Event) {
			reload(v, event)
		})
		v.WatchConfig()
	}

	return nil
}

func decode(v *viper.Viper, conf *Config) error {
	if err := v.Unmarshal(conf); err != nil {
		return fmt.Errorf("unmarshal config error: %w", err)
	}
	if err := validate.Struct(conf); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func reload(v *viper.Viper, event fsnotify.Event) {
	slog.Info("detecting config change", "file", event.Name)

	next := new(Config)
	if err := decode(v, next); err != nil {
		slog.Error("config reload rejected", "error", err)
		return
	}

	logging.SetLevel(next.Log.Level)
	current.Store(next)

	mu.Lock()
	hooks := append([]func(*Config){}, onReload...)
	mu.Unlock()
	for _, hook := range hooks {
		hook(next)
	}
	slog.Info("config hot-reloaded and validated successfully")
}

// Current 返回最近一次加载或热更新成功的配置快照，未加载时返回 nil.
func Current() *Config {
	return current.Load()
}

// ErrNotLoaded Load 尚未调用.
var ErrNotLoaded = errors.New("config: not loaded")

// GetViper 返回底层的 Viper 实例.
func GetViper() (*viper.Viper, error) {
	mu.Lock()
	defer mu.Unlock()
	if vInstance == nil {
		return nil, ErrNotLoaded
	}
	return vInstance, nil
}

// PrintWithMask 脱敏打印当前配置.
func PrintWithMask(conf any) {
	masked, err := MaskedJSON(conf)
	if err != nil {
		slog.Error("failed to marshal config for printing", "error", err)
		return
	}
	slog.Info("current effective configuration", "config", masked)
}

// MaskedJSON 返回敏感字段已脱敏的 JSON 表示.
func MaskedJSON(conf any) (string, error) {
	data, err := json.Marshal(conf)
	if err != nil {
		return "", err
	}

	var configMap map[string]any
	if err := json.Unmarshal(data, &configMap); err != nil {
		return "", err
	}

	mask(configMap)

	out, err := json.MarshalIndent(configMap, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func mask(configMap map[string]any) {
	sensitiveKeys := []string{"password", "secret", "dsn", "key", "token"}

	for key, val := range configMap {
		if subMap, ok := val.(map[string]any); ok {
			mask(subMap)
			continue
		}

		if slice, ok := val.([]any); ok {
			for _, item := range slice {
				if itemMap, ok := item.(map[string]any); ok {
					mask(itemMap)
				}
			}
			continue
		}

		for _, sensitiveKey := range sensitiveKeys {
			if strings.Contains(strings.ToLower(key), sensitiveKey) {
				configMap[key] = "******"
				break
			}
		}
	}
}
