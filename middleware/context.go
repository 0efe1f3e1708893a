package middleware

import (
	"context"
	"net"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"github.com/wyfcoding/lpsolver/contextx"
)

const grpcUserAgentKey = "user-agent"

// RequestContextEnricher 把客户端 IP 与 User-Agent 写入请求上下文，供限流与日志使用。
// IP 取自 gin 的 ClientIP，受 TrustedProxies 约束。
func RequestContextEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(enrich(c.Request.Context(), c.ClientIP(), c.Request.UserAgent()))
		c.Next()
	}
}

// GRPCContextEnricher 是 RequestContextEnricher 的 gRPC 版本，IP 取自对端地址（去掉端口）。
func GRPCContextEnricher() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var ip, ua string
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			ip = p.Addr.String()
			if host, _, err := net.SplitHostPort(ip); err == nil {
				ip = host
			}
		}
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(grpcUserAgentKey); len(vals) > 0 {
				ua = vals[0]
			}
		}
		return handler(enrich(ctx, ip, ua), req)
	}
}

func enrich(ctx context.Context, ip, ua string) context.Context {
	if ip != "" {
		ctx = contextx.WithIP(ctx, ip)
	}
	if ua != "" {
		ctx = contextx.WithUserAgent(ctx, ua)
	}
	return ctx
}
