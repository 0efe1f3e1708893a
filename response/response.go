// Package response 提供了统一的 HTTP 响应封装，支持 xerrors 错误码映射及 gRPC 状态码转换。
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wyfcoding/lpsolver/contextx"
	"github.com/wyfcoding/lpsolver/xerrors"
)

// HTTPStatusProvider 定义了能够提供 HTTP 状态码的错误接口。
type HTTPStatusProvider interface {
	HTTPStatus() int // 返回对应的 HTTP 标准状态码
}

// ErrorBody 是错误响应体。求解结果本身不经过此封装。
type ErrorBody struct {
	Code      int    `json:"code"`
	Msg       string `json:"msg"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// JSON 原样输出 data，不包装 code 和 msg。
// 求解结果与健康检查使用此函数，保持各自的线上格式。
func JSON(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

// Error 发送错误响应。
// 优先识别 xerrors (业务错误码)，其次是 gRPC Status，无法识别时返回 500 且不暴露内部细节。
func Error(c *gin.Context, err error) {
	statusCode := http.StatusInternalServerError
	body := ErrorBody{
		Code:      statusCode,
		Msg:       http.StatusText(statusCode),
		RequestID: contextx.GetRequestID(c.Request.Context()),
	}

	var sp HTTPStatusProvider
	if xe, ok := xerrors.FromError(err); ok {
		statusCode = xe.HTTPStatus()
		body.Code = xe.Code
		body.Msg = xe.Message
		body.Detail = xe.Detail
	} else if errors.As(err, &sp) {
		statusCode = sp.HTTPStatus()
		body.Code = statusCode
		body.Msg = http.StatusText(statusCode)
	} else if st, ok := status.FromError(err); ok && err != nil {
		statusCode = grpcCodeToHTTP(st.Code())
		body.Code = statusCode
		body.Msg = st.Message()
	}

	c.JSON(statusCode, body)
}

// ErrorWithStatus 发送一个带有指定 HTTP 状态码、消息和详情的错误响应。
func ErrorWithStatus(c *gin.Context, status int, msg string, detail string) {
	c.JSON(status, ErrorBody{
		Code:      status,
		Msg:       msg,
		Detail:    detail,
		RequestID: contextx.GetRequestID(c.Request.Context()),
	})
}

// grpcCodeToHTTP 执行 gRPC 到 HTTP 的标准协议映射。
func grpcCodeToHTTP(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.Canceled:
		return 499 // Client Closed Request
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
