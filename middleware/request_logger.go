package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"

	"github.com/wyfcoding/lpsolver/contextx"
	"github.com/wyfcoding/lpsolver/logging"
	"github.com/wyfcoding/lpsolver/tracing"
)

// Logger 访问日志中间件。
// 5xx 记录为 Error，4xx 与超过 slow 的请求记录为 Warn，其余为 Info。
func Logger(logger *logging.Logger, slow time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		cost := time.Since(start)
		ctx := c.Request.Context()
		status := c.Writer.Status()

		fields := []any{
			"trace_id", tracing.GetTraceID(ctx),
			"request_id", contextx.GetRequestID(ctx),
			"status", status,
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"ip", c.ClientIP(),
			"cost", cost,
			"bytes_in", c.Request.ContentLength,
			"bytes_out", c.Writer.Size(),
			"user_agent", c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400 || (slow > 0 && cost > slow):
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "HTTP Request", fields...)
	}
}

// GRPCRequestLogger 是 Logger 的 gRPC 版本，按状态码分级：
// OK 为 Info（超过 slow 时为 Warn），调用方原因导致的失败为 Warn，其余为 Error。
func GRPCRequestLogger(logger *logging.Logger, slow time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		cost := time.Since(start)
		code := grpcCode(err)

		fields := append(contextx.LogAttrs(ctx),
			"trace_id", tracing.GetTraceID(ctx),
			"method", info.FullMethod,
			"status", code.String(),
			"cost", cost,
		)
		if err != nil {
			fields = append(fields, "error", err)
		}

		level := slog.LevelInfo
		switch code {
		case codes.OK:
			if slow > 0 && cost > slow {
				level = slog.LevelWarn
			}
		case codes.InvalidArgument, codes.NotFound, codes.ResourceExhausted, codes.Canceled, codes.DeadlineExceeded:
			level = slog.LevelWarn
		default:
			level = slog.LevelError
		}
		logger.Log(ctx, level, "gRPC Request", fields...)

		return resp, err
	}
}
