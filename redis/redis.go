// Package redis 构造带指标钩子的 Redis 客户端，供结果缓存的二级存储使用。
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wyfcoding/lpsolver/config"
	"github.com/wyfcoding/lpsolver/logging"
	"github.com/wyfcoding/lpsolver/metrics"
)

// Client 是 redis.UniversalClient 的别名，方便业务层直接使用而无需导入原生包
type Client = redis.UniversalClient

// Nil 是键不存在时返回的错误。
var Nil = redis.Nil

type metricsHook struct {
	m *metrics.Metrics
}

func (h *metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		h.m.ObserveRedisCommand(cmd.Name(), status(err))
		return err
	}
}

func (h *metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		h.m.ObserveRedisCommand("pipeline", status(err))
		return err
	}
}

func status(err error) string {
	if err != nil && !errors.Is(err, redis.Nil) {
		return "error"
	}
	return "success"
}

// New 按配置构造客户端但不建立连接。
// 配置了 MasterName 时走 Sentinel，多个地址时走 Cluster，否则为单节点。
func New(cfg *config.RedisConfig, m *metrics.Metrics) Client {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        cfg.Addrs,
		MasterName:   cfg.MasterName,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	client.AddHook(&metricsHook{m: m})
	return client
}

// NewClient 使用提供的配置创建一个新的 Redis 客户端并验证连通性。
// 返回客户端实例、清理函数和连接失败时的错误。
func NewClient(cfg *config.RedisConfig, logger *logging.Logger, m *metrics.Metrics) (Client, func(), error) {
	if len(cfg.Addrs) == 0 {
		return nil, nil, errors.New("redis: no addresses configured")
	}
	client := New(cfg, m)

	// 创建一个带超时机制的上下文，用于Ping操作。
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Successfully connected to Redis", "addrs", cfg.Addrs)

	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close Redis client", "error", err)
		}
	}

	return client, cleanup, nil
}
