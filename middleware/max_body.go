package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/lpsolver/response"
	"github.com/wyfcoding/lpsolver/xerrors"
)

// MaxBodyBytes 返回一个限制请求体大小的 Gin 中间件。
// 声明的 Content-Length 超限时直接返回 413，否则以 http.MaxBytesReader 包装请求体，
// 由读取方在读到上限时得到 *http.MaxBytesError。limit <= 0 时不生效。
func MaxBodyBytes(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}

		if c.Request.ContentLength > limit {
			BodyTooLarge(c)
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// BodyTooLarge 输出 413 响应，错误码与消息取自 xerrors.ErrBodyTooLarge。
func BodyTooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, response.ErrorBody{
		Code:   xerrors.ErrBodyTooLarge.Code,
		Msg:    xerrors.ErrBodyTooLarge.Message,
		Detail: xerrors.ErrBodyTooLarge.Detail,
	})
}
