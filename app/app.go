// Package app 提供了应用程序的构建和管理功能，包括服务的启动、停止和资源清理。
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/lpsolver/logging"
)

// App 是应用程序的核心容器，负责管理应用程序的生命周期。
type App struct {
	name      string
	logger    *logging.Logger
	opts      options
	lifecycle *Lifecycle
}

// New 创建一个新的应用程序实例。
func New(name string, logger *logging.Logger, opts ...Option) *App {
	o := options{shutdownTimeout: DefaultShutdownTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	lc := NewLifecycle(logger)
	for _, hook := range o.hooks {
		lc.Append(hook)
	}

	return &App{
		name:      name,
		logger:    logger,
		opts:      o,
		lifecycle: lc,
	}
}

// Run 启动全部组件与服务器，阻塞直到收到 SIGINT/SIGTERM、ctx 取消或任一服务器异常退出，
// 随后在关停时限内逆序执行停止钩子。返回导致退出的服务器错误。
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.InfoContext(ctx, "application starting", "name", a.name, "version", a.opts.version, "pid", os.Getpid())

	if err := a.lifecycle.Start(ctx); err != nil {
		a.shutdown()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range a.opts.servers {
		g.Go(func() error {
			return srv.Start(gctx)
		})
	}
	err := g.Wait()
	if err != nil {
		a.logger.Error("server exited with error", "error", err)
	}

	a.logger.Info("shutting down application", "name", a.name)
	a.shutdown()
	a.logger.Info("application shut down gracefully")
	return err
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.opts.shutdownTimeout)
	defer cancel()
	if err := a.lifecycle.Stop(ctx); err != nil {
		a.logger.Error("component failed to stop", "error", err)
	}
}
