package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/lpsolver/tracing"
)

// HeaderXTraceID 响应头中的 trace id，客户端报错时可据此检索服务端日志与链路。
const HeaderXTraceID = "X-Trace-ID"

// TraceIDHeader 在处理器执行前写入 trace id 响应头，需排在 TracingMiddleware 之后。
// 未启用追踪时 span 无效，不写头。
func TraceIDHeader() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := tracing.GetTraceID(c.Request.Context()); id != "" {
			c.Header(HeaderXTraceID, id)
		}
		c.Next()
	}
}
