package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/lpsolver/config"
	"github.com/wyfcoding/lpsolver/health"
	"github.com/wyfcoding/lpsolver/limiter"
	"github.com/wyfcoding/lpsolver/logging"
	"github.com/wyfcoding/lpsolver/metrics"
	"github.com/wyfcoding/lpsolver/middleware"
	"github.com/wyfcoding/lpsolver/response"
	"github.com/wyfcoding/lpsolver/simplex"
	"github.com/wyfcoding/lpsolver/solver"
	"github.com/wyfcoding/lpsolver/xerrors"
)

const scenario = `{"direction":"maximize",
	"variables":[{"minimum":0,"maximum":4,"coefficient":2},{"minimum":0,"maximum":4,"coefficient":3}],
	"constraints":[{"expression":[{"variable":0,"coefficient":1},{"variable":1,"coefficient":1}],"comparison":"le","constant":4}]}`

const infeasible = `{"direction":"minimize",
	"variables":[{"minimum":0,"coefficient":1}],
	"constraints":[{"expression":[{"variable":0,"coefficient":1}],"comparison":"ge","constant":5},
	               {"expression":[{"variable":0,"coefficient":1}],"comparison":"le","constant":3}]}`

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	engine  *gin.Engine
	metrics *metrics.Metrics
	ready   *health.Registry
}

func newFixture(t *testing.T, mutate func(*config.Config, *EngineDeps), opts ...solver.Option) fixture {
	t.Helper()
	var cfg config.Config
	require.NoError(t, config.Load("", &cfg))

	logger := logging.NewWithWriter(io.Discard, "lpsolver", "test")
	m := metrics.NewMetrics("lpsolver")
	ready := health.NewRegistry(0)
	svc := solver.New(append([]solver.Option{solver.WithLogger(logger), solver.WithMetrics(m)}, opts...)...)

	deps := EngineDeps{Handler: NewHandler(svc, ready), Logger: logger, Metrics: m}
	if mutate != nil {
		mutate(&cfg, &deps)
	}
	engine, err := NewEngine(&cfg, deps)
	require.NoError(t, err)
	return fixture{engine: engine, metrics: m, ready: ready}
}

func (f fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, httptest.NewRequest(method, path, r))
	return w
}

func TestSolveOutcomes(t *testing.T) {
	f := newFixture(t, nil)

	cases := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{"success", scenario, http.StatusOK, `{"type":"success","value":{"objective":12,"values":[0,4]}}`},
		{"infeasible", infeasible, http.StatusOK, `{"type":"error","value":"infeasible"}`},
		{"unbounded", `{"direction":"maximize","variables":[{"minimum":0,"coefficient":1}],"constraints":[]}`, http.StatusOK, `{"type":"error","value":"unbounded"}`},
		{"bad format", `{"direction":"up"}`, http.StatusBadRequest, `{"type":"error","value":"bad_format"}`},
		{"empty body", "", http.StatusBadRequest, `{"type":"error","value":"bad_format"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(http.MethodPost, SolvePath, tc.body)
			assert.Equal(t, tc.status, w.Code)
			assert.JSONEq(t, tc.want, w.Body.String())
			assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
		})
	}
}

func TestSolveInternalDefect(t *testing.T) {
	opts := simplex.DefaultOptions()
	opts.MaxPivots = 1
	f := newFixture(t, nil, solver.WithOptions(opts))

	w := f.do(http.MethodPost, SolvePath, scenario)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, xerrors.ErrPivotLimit.Code, body.Code)
	assert.NotEmpty(t, body.RequestID)
	assert.NotContains(t, w.Body.String(), `"type"`)
}

func TestSolveBodyTooLarge(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config, _ *EngineDeps) {
		cfg.Server.HTTP.MaxBodyBytes = 64
	})

	w := f.do(http.MethodPost, SolvePath, scenario)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	req := httptest.NewRequest(http.MethodPost, SolvePath, strings.NewReader(scenario))
	req.ContentLength = -1
	w = httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestSolveRateLimited(t *testing.T) {
	f := newFixture(t, func(_ *config.Config, deps *EngineDeps) {
		deps.Limiter = limiter.NewLocalLimiter(0.001, 1)
	})

	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, SolvePath, scenario).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(http.MethodPost, SolvePath, scenario).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, HealthzPath, "").Code, "health checks are not rate limited")
}

func TestHealthAndReadiness(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, HealthzPath, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"up"}`, w.Body.String())

	f.ready.Register("solver", health.SolverChecker(simplex.DefaultOptions))
	w = f.do(http.MethodGet, ReadyzPath, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"up","checks":{"solver":"up"}}`, w.Body.String())

	f.ready.Register("cache", func(context.Context) error { return errors.New("redis unreachable") })
	w = f.do(http.MethodGet, ReadyzPath, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "redis unreachable")
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.do(http.MethodPost, SolvePath, scenario)

	w := f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `lpsolver_solve_total{outcome="success"} 1`)
	assert.Contains(t, w.Body.String(), `http_server_requests_total{method="POST",path="/v1/solve",status="200"} 1`)

	separate := newFixture(t, func(cfg *config.Config, _ *EngineDeps) { cfg.Metrics.Addr = ":9100" })
	assert.Equal(t, http.StatusNotFound, separate.do(http.MethodGet, "/metrics", "").Code)
}

func TestSolveRequiresPost(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodGet, SolvePath, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
