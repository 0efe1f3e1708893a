package app

import (
	"context"
	"time"

	"github.com/wyfcoding/lpsolver/server"
)

// DefaultShutdownTimeout 关停阶段执行全部停止钩子的总时限。
const DefaultShutdownTimeout = 10 * time.Second

// Option 是一个函数类型，用于配置应用程序选项。
type Option func(*options)

// options 是应用程序的内部配置结构体。
type options struct {
	servers         []server.Server // 应用程序管理的服务器列表（HTTP、gRPC）。
	hooks           []Hook          // 组件生命周期钩子，停止时逆序执行。
	shutdownTimeout time.Duration
	version         string
}

// WithServer 向应用程序添加一个或多个 `server.Server` 实例。
// 服务器在 Run 时并发启动，上下文取消时各自优雅关闭。
func WithServer(servers ...server.Server) Option {
	return func(o *options) {
		o.servers = append(o.servers, servers...)
	}
}

// WithHook 注册组件生命周期钩子。
func WithHook(hook Hook) Option {
	return func(o *options) {
		o.hooks = append(o.hooks, hook)
	}
}

// WithCleanup 注册一个在关停时执行的清理函数，等价于只有 OnStop 的钩子。
func WithCleanup(name string, cleanup func()) Option {
	return WithHook(Hook{Name: name, OnStop: func(context.Context) error {
		cleanup()
		return nil
	}})
}

// WithShutdownTimeout 设置关停总时限。
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		o.shutdownTimeout = d
	}
}

// WithVersion 设置启动日志中的版本号。
func WithVersion(v string) Option {
	return func(o *options) {
		o.version = v
	}
}
