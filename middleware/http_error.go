package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/lpsolver/response"
	"github.com/wyfcoding/lpsolver/xerrors"
)

// HTTPErrorHandler 在处理器未写响应时，把 c.Error 登记的错误统一输出为错误信封。
func HTTPErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}
		response.Error(c, pickError(c.Errors))
	}
}

// pickError 优先选择最后一个带业务码的 xerrors.Error，没有时取最后登记的错误。
func pickError(errs []*gin.Error) error {
	for i := len(errs) - 1; i >= 0; i-- {
		if _, ok := xerrors.FromError(errs[i].Err); ok {
			return errs[i].Err
		}
	}
	return errs[len(errs)-1].Err
}
