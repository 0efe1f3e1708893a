package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// TracingMiddleware 为每个请求创建服务端 Span，serviceName 用于标识 Span 来源。
// skip 中的路径（如 /metrics 与健康检查）不产生 Span。
func TracingMiddleware(serviceName string, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return otelgin.Middleware(serviceName, otelgin.WithFilter(func(r *http.Request) bool {
		_, ok := skipped[r.URL.Path]
		return !ok
	}))
}
