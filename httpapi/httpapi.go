// Package httpapi 将求解服务暴露为 HTTP 接口。
//
//	POST /v1/solve  请求体为 JSON 问题，响应体为 {type, value} 结果
//	GET  /healthz   存活检查，进程可响应即返回 200
//	GET  /readyz    就绪检查，执行全部已注册的健康检查项
//
// 四种模型化结果中 bad_format 返回 400，其余返回 200；内部缺陷返回 500 错误体。
package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/lpsolver/codec"
	"github.com/wyfcoding/lpsolver/health"
	"github.com/wyfcoding/lpsolver/lp"
	"github.com/wyfcoding/lpsolver/middleware"
	"github.com/wyfcoding/lpsolver/response"
	"github.com/wyfcoding/lpsolver/solver"
	"github.com/wyfcoding/lpsolver/xerrors"
)

// 路由路径。
const (
	SolvePath   = "/v1/solve"
	HealthzPath = "/healthz"
	ReadyzPath  = "/readyz"
)

// Handler 持有求解服务与就绪检查注册表。
type Handler struct {
	solver *solver.Service
	ready  *health.Registry
}

// NewHandler 创建处理器，ready 为 nil 时就绪检查总是通过。
func NewHandler(svc *solver.Service, ready *health.Registry) *Handler {
	return &Handler{solver: svc, ready: ready}
}

// Register 在路由上挂载全部接口，solveMiddlewares 仅作用于求解接口（如限流）。
func (h *Handler) Register(r gin.IRouter, solveMiddlewares ...gin.HandlerFunc) {
	r.GET(HealthzPath, h.Healthz)
	r.GET(ReadyzPath, h.Readyz)
	r.POST(SolvePath, append(solveMiddlewares, h.Solve)...)
}

// Solve 读取请求体并求解。
func (h *Handler) Solve(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.BodyTooLarge(c)
			return
		}
		response.Error(c, xerrors.ErrBadRequest.WithCause(err))
		return
	}

	out, err := h.solver.SolveRequest(c.Request.Context(), data)
	if err != nil {
		_ = c.Error(err)
		response.Error(c, err)
		return
	}

	response.JSON(c, StatusOf(out), out)
}

// StatusOf 返回模型化结果对应的 HTTP 状态码。
func StatusOf(out codec.Outcome) int {
	if out.Kind() == string(lp.FailureBadFormat) {
		return http.StatusBadRequest
	}
	return http.StatusOK
}

// Healthz 存活检查。
func (h *Handler) Healthz(c *gin.Context) {
	response.JSON(c, http.StatusOK, health.Report{Status: health.StatusUp})
}

// Readyz 就绪检查，任一检查项失败返回 503。
func (h *Handler) Readyz(c *gin.Context) {
	if h.ready == nil {
		h.Healthz(c)
		return
	}
	report := h.ready.Check(c.Request.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	response.JSON(c, status, report)
}
