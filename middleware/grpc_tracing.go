package middleware

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

// GrpcTracingServerOption 返回启用 OpenTelemetry 追踪的 gRPC ServerOption，使用 stats handler 机制。
func GrpcTracingServerOption(opts ...otelgrpc.Option) grpc.ServerOption {
	return grpc.StatsHandler(otelgrpc.NewServerHandler(opts...))
}

// GrpcTracingDialOption 返回客户端对应的 DialOption，用于向下游传播追踪上下文。
func GrpcTracingDialOption(opts ...otelgrpc.Option) grpc.DialOption {
	return grpc.WithStatsHandler(otelgrpc.NewClientHandler(opts...))
}
