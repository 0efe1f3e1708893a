package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/wyfcoding/lpsolver/logging"
)

// GinServer 封装了标准的 `http.Server`，用于运行 Gin 引擎，并提供了优雅的启动和关闭功能。
type GinServer struct {
	server *http.Server
	addr   string
	logger *logging.Logger
	opts   Options
}

// NewGinServer 创建一个新的 HTTP 服务器实例，handler 通常是 *gin.Engine。
func NewGinServer(handler http.Handler, addr string, logger *logging.Logger, options ...Options) *GinServer {
	opts := firstOptions(options)
	return &GinServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: opts.ReadHeaderTimeout,
			WriteTimeout:      opts.WriteTimeout,
			IdleTimeout:       opts.IdleTimeout,
		},
		addr:   addr,
		logger: logger.WithModule("http"),
		opts:   opts,
	}
}

// Start 监听配置的地址并运行服务。
// 这是一个阻塞操作，上下文取消时执行优雅关闭。
func (s *GinServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve 在给定的监听器上运行服务，直到上下文取消或服务异常退出。
func (s *GinServer) Serve(ctx context.Context, lis net.Listener) error {
	s.logger.Info("starting http server", "addr", lis.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http server stopping due to context cancellation")
		return s.Stop(context.Background())
	case err := <-errChan:
		return err
	}
}

// Stop 优雅地停止服务器，等待现有请求在关停超时内完成。
func (s *GinServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping http server gracefully")
	ctx, cancel := context.WithTimeout(ctx, s.opts.shutdownTimeout())
	defer cancel()
	return s.server.Shutdown(ctx)
}
