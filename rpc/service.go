// Package rpc 将求解服务暴露为 gRPC 服务 lpsolver.v1.Solver。
//
// 服务不依赖 protobuf 生成代码：请求与响应都是 JSON 原文，经 CodecName 编解码，
// 与 HTTP 接口完全一致。四种模型化结果都以 OK 状态返回，内部缺陷返回 codes.Internal。
package rpc

import (
	"context"
	"encoding/json"
	"time"

	"google.golang.org/grpc"

	"github.com/wyfcoding/lpsolver/config"
	"github.com/wyfcoding/lpsolver/limiter"
	"github.com/wyfcoding/lpsolver/logging"
	"github.com/wyfcoding/lpsolver/metrics"
	"github.com/wyfcoding/lpsolver/middleware"
	"github.com/wyfcoding/lpsolver/solver"
)

const (
	ServiceName = "lpsolver.v1.Solver"
	SolveMethod = "/" + ServiceName + "/Solve"
)

// SolverServer 是 lpsolver.v1.Solver 的服务端接口。
type SolverServer interface {
	Solve(ctx context.Context, req *json.RawMessage) (*json.RawMessage, error)
}

// ServiceDesc 描述 lpsolver.v1.Solver 服务。
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SolverServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Solve", Handler: solveHandler},
	},
	Metadata: "lpsolver/v1/solver",
}

func solveHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(json.RawMessage)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SolverServer).Solve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SolveMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SolverServer).Solve(ctx, req.(*json.RawMessage))
	}
	return interceptor(ctx, in, info, handler)
}

// Server 以 solver.Service 实现 SolverServer。
type Server struct {
	svc *solver.Service
}

// NewServer 创建 gRPC 求解服务。
func NewServer(svc *solver.Service) *Server {
	return &Server{svc: svc}
}

// Register 在 gRPC 服务器上注册求解服务。
func Register(s grpc.ServiceRegistrar, svc *solver.Service) {
	s.RegisterService(&ServiceDesc, NewServer(svc))
}

// Solve 求解 JSON 请求并返回 JSON 结果。
func (s *Server) Solve(ctx context.Context, req *json.RawMessage) (*json.RawMessage, error) {
	out, err := s.svc.SolveRequest(ctx, *req)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	resp := json.RawMessage(data)
	return &resp, nil
}

// InterceptorDeps 组装服务端拦截器链所需的依赖，Metrics 与 Limiter 可为 nil。
type InterceptorDeps struct {
	Logger        *logging.Logger
	Metrics       *metrics.Metrics
	Limiter       limiter.Limiter
	SlowThreshold time.Duration // 访问日志的慢请求阈值
}

// Interceptors 返回求解服务的一元拦截器链，顺序即执行顺序。
func Interceptors(cfg config.ServerConfig, deps InterceptorDeps) []grpc.UnaryServerInterceptor {
	return []grpc.UnaryServerInterceptor{
		middleware.GRPCRecovery(deps.Logger),
		middleware.GRPCContextEnricher(),
		middleware.GRPCRequestID(),
		middleware.GRPCRequestLogger(deps.Logger.WithModule("access"), deps.SlowThreshold),
		middleware.GRPCMetricsInterceptor(deps.Metrics),
		limitSolve(middleware.GRPCRateLimit(deps.Limiter, deps.Logger)),
		middleware.GRPCTimeoutInterceptor(cfg.RequestTimeout),
		middleware.GRPCErrorTranslator(),
	}
}

// limitSolve 仅对求解方法应用限流，健康检查不受影响。
func limitSolve(next grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if info.FullMethod != SolveMethod {
			return handler(ctx, req)
		}
		return next(ctx, req, info, handler)
	}
}
