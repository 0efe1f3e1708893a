package middleware

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wyfcoding/lpsolver/xerrors"
)

// GRPCErrorTranslator 返回一个 gRPC 一元拦截器，用于将 xerrors 转换为标准 gRPC 状态码。
// 非 xerrors 且非 Status 的错误一律视为 codes.Internal，不向客户端暴露原始信息。
func GRPCErrorTranslator() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}

		if xe, ok := xerrors.FromError(err); ok {
			return resp, xe.ToGRPCStatus().Err()
		}

		if _, ok := status.FromError(err); ok {
			return resp, err
		}

		return resp, status.Error(codes.Internal, "internal server error")
	}
}

// grpcCode 返回错误对应的 gRPC 状态码，xerrors 优先。
func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if xe, ok := xerrors.FromError(err); ok {
		return xe.GRPCCode()
	}
	return status.Code(err)
}
