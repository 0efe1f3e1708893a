package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"

	"github.com/wyfcoding/lpsolver/response"
	"github.com/wyfcoding/lpsolver/xerrors"
)

// TimeoutMiddleware 为每个请求设置截止时间，d <= 0 时不限。
// 截止时间到了而处理器还没写响应时返回 504。
func TimeoutMiddleware(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := withDeadline(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if !c.Writer.Written() && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			response.Error(c, xerrors.ErrRequestTimeout.WithCause(ctx.Err()).WithDetail("request exceeded %s", d))
			c.Abort()
		}
	}
}

// GRPCTimeoutInterceptor 是 TimeoutMiddleware 的 gRPC 版本。
func GRPCTimeoutInterceptor(d time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, cancel := withDeadline(ctx, d)
		defer cancel()
		return handler(ctx, req)
	}
}

// withDeadline 只收紧截止时间，调用方自带更早的截止时间时保持不变。
func withDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) <= d {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
