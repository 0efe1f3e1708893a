package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"

	"github.com/wyfcoding/lpsolver/contextx"
	"github.com/wyfcoding/lpsolver/limiter"
	"github.com/wyfcoding/lpsolver/logging"
	"github.com/wyfcoding/lpsolver/response"
	"github.com/wyfcoding/lpsolver/xerrors"
)

// RateLimitMiddleware 构造一个通用的 Gin 限流中间件，以客户端 IP 作为限流标识。
// l 为 nil 时不限流。
func RateLimitMiddleware(l limiter.Limiter, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := c.ClientIP()

		allowed, err := l.Allow(ctx, key)
		if err != nil {
			// 限流组件故障时放行。
			logger.ErrorContext(ctx, "rate limiter internal error, fail-open applied", "key", key, "error", err)
			c.Next()
			return
		}

		if !allowed {
			logger.WarnContext(ctx, "request rejected by rate limiter", "key", key, "path", c.Request.URL.Path)
			response.Error(c, xerrors.ErrRateLimited)
			c.Abort()
			return
		}

		c.Next()
	}
}

// GRPCRateLimit 返回 gRPC 一元限流拦截器，以对端 IP 作为限流标识。
// 需要排在 GRPCContextEnricher 之后，拒绝时返回 ResourceExhausted。
func GRPCRateLimit(l limiter.Limiter, logger *logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if l == nil {
			return handler(ctx, req)
		}
		key := contextx.GetIP(ctx)

		allowed, err := l.Allow(ctx, key)
		if err != nil {
			logger.ErrorContext(ctx, "rate limiter internal error, fail-open applied", "key", key, "error", err)
			return handler(ctx, req)
		}
		if !allowed {
			logger.WarnContext(ctx, "request rejected by rate limiter", "key", key, "method", info.FullMethod)
			return nil, xerrors.ErrRateLimited.ToGRPCStatus().Err()
		}
		return handler(ctx, req)
	}
}
