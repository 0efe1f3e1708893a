package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/wyfcoding/lpsolver/logging"
	"github.com/wyfcoding/lpsolver/middleware"
)

// GRPCServer 封装了标准的 grpc.Server，提供了简化的生命周期管理逻辑。
type GRPCServer struct {
	server *grpc.Server    // 底层 gRPC 服务器实例.
	logger *logging.Logger // 日志记录.
	addr   string          // 监听地址 (Host:Port).
	opts   Options
}

// NewGRPCServer 构造一个新的 gRPC 协议服务器实例。
// register 负责注册业务服务，interceptors 按顺序串联为一元拦截器链。
func NewGRPCServer(addr string, logger *logging.Logger, register func(*grpc.Server), interceptors []grpc.UnaryServerInterceptor, options ...Options) *GRPCServer {
	opts := firstOptions(options)

	grpcOpts := []grpc.ServerOption{middleware.GrpcTracingServerOption()}
	grpcOpts = append(grpcOpts, opts.ServerOptions...)
	if len(interceptors) > 0 {
		grpcOpts = append(grpcOpts, grpc.ChainUnaryInterceptor(interceptors...))
	}

	s := grpc.NewServer(grpcOpts...)
	register(s)
	if opts.Reflection {
		reflection.Register(s)
	}

	return &GRPCServer{
		server: s,
		addr:   addr,
		logger: logger.WithModule("grpc"),
		opts:   opts,
	}
}

// Start 启动 TCP 监听并运行 gRPC 服务。
func (s *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve 在给定的监听器上运行 gRPC 服务，直到上下文取消或服务异常退出。
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	s.logger.Info("starting grpc server", "addr", lis.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("grpc server stopping due to context cancellation")
		return s.Stop(context.Background())
	case err := <-errChan:
		return err
	}
}

// Stop 执行 gRPC 服务器的优雅关停，超时后强制关闭。
func (s *GRPCServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping grpc server gracefully")

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	timer := time.NewTimer(s.opts.shutdownTimeout())
	defer timer.Stop()

	select {
	case <-stopped:
		return nil
	case <-timer.C:
		s.logger.Warn("grpc server graceful stop timeout, forcing stop")
		s.server.Stop()
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return ctx.Err()
	}
}
