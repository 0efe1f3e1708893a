package server

import (
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/wyfcoding/lpsolver/config"
)

// DefaultShutdownTimeout 优雅关停的默认等待时间。
const DefaultShutdownTimeout = 10 * time.Second

// Options 服务器生命周期与传输参数。零值字段使用 net/http 与 grpc 的默认行为。
type Options struct {
	ShutdownTimeout time.Duration

	// HTTP
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// gRPC
	Reflection    bool
	ServerOptions []grpc.ServerOption
}

// HTTPOptions 从配置构造 HTTP 服务器参数。
func HTTPOptions(cfg config.ServerConfig) Options {
	return Options{
		ShutdownTimeout:   cfg.ShutdownTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
}

// GRPCOptions 从配置构造 gRPC 服务器参数：消息大小、并发流与 keepalive。
func GRPCOptions(cfg config.ServerConfig) Options {
	opts := []grpc.ServerOption{
		grpc.KeepaliveParams(toServerParams(cfg.GRPC.Keepalive)),
		grpc.KeepaliveEnforcementPolicy(toEnforcement(cfg.GRPC.Keepalive)),
	}
	if cfg.GRPC.MaxRecvMsgSize > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(cfg.GRPC.MaxRecvMsgSize))
	}
	if cfg.GRPC.MaxConcurrentStreams > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(cfg.GRPC.MaxConcurrentStreams))
	}
	return Options{
		ShutdownTimeout: cfg.ShutdownTimeout,
		Reflection:      cfg.GRPC.Reflection,
		ServerOptions:   opts,
	}
}

func (o Options) shutdownTimeout() time.Duration {
	if o.ShutdownTimeout > 0 {
		return o.ShutdownTimeout
	}
	return DefaultShutdownTimeout
}

func firstOptions(options []Options) Options {
	if len(options) > 0 {
		return options[0]
	}
	return Options{}
}

// toServerParams 构造 gRPC keepalive.ServerParameters。
func toServerParams(cfg config.GRPCKeepaliveConfig) keepalive.ServerParameters {
	return keepalive.ServerParameters{
		MaxConnectionIdle:     cfg.MaxConnectionIdle,
		MaxConnectionAge:      cfg.MaxConnectionAge,
		MaxConnectionAgeGrace: cfg.MaxConnectionAgeGrace,
		Time:                  cfg.Time,
		Timeout:               cfg.Timeout,
	}
}

// toEnforcement 构造 gRPC keepalive.EnforcementPolicy。
func toEnforcement(cfg config.GRPCKeepaliveConfig) keepalive.EnforcementPolicy {
	return keepalive.EnforcementPolicy{
		MinTime:             cfg.MinTime,
		PermitWithoutStream: cfg.PermitWithoutStream,
	}
}
