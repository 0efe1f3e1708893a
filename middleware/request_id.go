// Package middleware 提供了 Gin 与 gRPC 的通用中间件实现：请求 ID、访问日志、异常恢复、
// 指标采集、请求体大小限制、限流、超时以及 OpenTelemetry 链路追踪。
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/wyfcoding/lpsolver/contextx"
	"github.com/wyfcoding/lpsolver/idgen"
	"github.com/wyfcoding/lpsolver/tracing"
)

// HeaderXRequestID 请求 ID 的 HTTP 头，gRPC metadata 中使用其小写形式。
const HeaderXRequestID = "X-Request-ID"

const (
	grpcRequestIDKey = "x-request-id"
	grpcTraceIDKey   = "x-trace-id"

	maxRequestIDLen = 64
)

// RequestID 沿用客户端传入的请求 ID，缺失或不合法时用雪花 ID 生成，并回写到响应头。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := requestID(c.GetHeader(HeaderXRequestID))
		c.Request = c.Request.WithContext(contextx.WithRequestID(c.Request.Context(), id))
		c.Header(HeaderXRequestID, id)
		c.Next()
	}
}

// GRPCRequestID 是 RequestID 的 gRPC 版本，请求 ID 与 trace id 通过响应 header 回传。
func GRPCRequestID() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var incoming string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(grpcRequestIDKey); len(vals) > 0 {
				incoming = vals[0]
			}
		}

		id := requestID(incoming)
		ctx = contextx.WithRequestID(ctx, id)

		header := metadata.Pairs(grpcRequestIDKey, id)
		if traceID := tracing.GetTraceID(ctx); traceID != "" {
			header.Set(grpcTraceIDKey, traceID)
		}
		_ = grpc.SetHeader(ctx, header)

		return handler(ctx, req)
	}
}

// requestID 只接受长度不超过 64 的 [A-Za-z0-9._:-] 串，其余一律重新生成，
// 请求 ID 会原样写入日志。
func requestID(incoming string) string {
	if validRequestID(incoming) {
		return incoming
	}
	return idgen.GenIDString()
}

func validRequestID(s string) bool {
	if s == "" || len(s) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}
