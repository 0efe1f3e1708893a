package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/wyfcoding/lpsolver/contextx"
	"github.com/wyfcoding/lpsolver/limiter"
	"github.com/wyfcoding/lpsolver/logging"
	"github.com/wyfcoding/lpsolver/metrics"
	"github.com/wyfcoding/lpsolver/response"
	"github.com/wyfcoding/lpsolver/xerrors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logging.Logger {
	return logging.NewWithWriter(io.Discard, "lpsolver", "test")
}

func serve(t *testing.T, r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

type errLimiter struct{}

func (errLimiter) Allow(context.Context, string) (bool, error) { return false, errors.New("redis down") }

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, contextx.GetRequestID(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderXRequestID, "req-1")
	w := serve(t, r, req)
	assert.Equal(t, "req-1", w.Body.String())
	assert.Equal(t, "req-1", w.Header().Get(HeaderXRequestID))

	w = serve(t, r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get(HeaderXRequestID))

	for _, bad := range []string{"a b", "id\ninjected", strings.Repeat("x", maxRequestIDLen+1)} {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(HeaderXRequestID, bad)
		w := serve(t, r, req)
		assert.NotEqual(t, bad, w.Body.String())
		assert.True(t, validRequestID(w.Body.String()))
	}
}

func TestValidRequestID(t *testing.T) {
	assert.True(t, validRequestID("req-1.a_b:c"))
	assert.True(t, validRequestID(strings.Repeat("x", maxRequestIDLen)))
	assert.False(t, validRequestID(""))
	assert.False(t, validRequestID("中文"))
	assert.False(t, validRequestID("a/b"))
}

func TestRequestContextEnricher(t *testing.T) {
	r := gin.New()
	r.Use(RequestContextEnricher())
	r.GET("/x", func(c *gin.Context) {
		ctx := c.Request.Context()
		c.String(http.StatusOK, contextx.GetIP(ctx)+"|"+contextx.GetUserAgent(ctx))
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	req.Header.Set("User-Agent", "lpsolver-test")
	assert.Equal(t, "10.1.2.3|lpsolver-test", serve(t, r, req).Body.String())
}

func TestLogger(t *testing.T) {
	logging.SetLevel("info")
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestID(), Logger(logging.NewWithWriter(&buf, "lpsolver", "test"), time.Second))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	serve(t, r, httptest.NewRequest(http.MethodGet, "/ok", nil))
	serve(t, r, httptest.NewRequest(http.MethodGet, "/bad", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "INFO", first["level"])
	assert.Equal(t, "/ok", first["path"])
	assert.NotEmpty(t, first["request_id"])
	assert.Equal(t, "WARN", second["level"])
	assert.Equal(t, 400.0, second["status"])
}

func TestGRPCRequestLogger(t *testing.T) {
	logging.SetLevel("info")
	var buf bytes.Buffer
	intercept := GRPCRequestLogger(logging.NewWithWriter(&buf, "lpsolver", "test"), time.Hour)
	ctx := contextx.WithRequestID(context.Background(), "req-7")

	results := []error{nil, xerrors.ErrRateLimited, xerrors.ErrPivotLimit}
	for _, want := range results {
		_, _ = intercept(ctx, nil, solveInfo, func(context.Context, any) (any, error) { return nil, want })
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	levels := make([]string, 0, 3)
	for _, line := range lines {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		assert.Equal(t, "req-7", m["request_id"])
		assert.Equal(t, solveInfo.FullMethod, m["method"])
		levels = append(levels, m["level"].(string))
	}
	assert.Equal(t, []string{"INFO", "WARN", "ERROR"}, levels)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(testLogger()))
	r.GET("/panic", func(*gin.Context) { panic("boom") })

	w := serve(t, r, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := errorBody(t, w)
	assert.Equal(t, http.StatusInternalServerError, body.Code)
	assert.NotContains(t, w.Body.String(), "boom")
	assert.NotEmpty(t, body.RequestID)
}

func TestMaxBodyBytes(t *testing.T) {
	r := gin.New()
	r.Use(MaxBodyBytes(8))
	r.POST("/x", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			BodyTooLarge(c)
			return
		}
		c.Status(http.StatusNoContent)
	})

	w := serve(t, r, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("small")))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(t, r, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("definitely too large")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, xerrors.ErrBodyTooLarge.Code, errorBody(t, w).Code)

	// 未声明长度时由读取方发现超限。
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("definitely too large"))
	req.ContentLength = -1
	w = serve(t, r, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(limiter.NewLocalLimiter(0.001, 1), testLogger()))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(t, r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
	w := serve(t, r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, xerrors.ErrRateLimited.Code, errorBody(t, w).Code)

	open := gin.New()
	open.Use(RateLimitMiddleware(errLimiter{}, testLogger()))
	open.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, serve(t, open, httptest.NewRequest(http.MethodGet, "/x", nil)).Code, "fail open")

	none := gin.New()
	none.Use(RateLimitMiddleware(nil, testLogger()))
	none.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, serve(t, none, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
}

func TestTimeoutMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(TimeoutMiddleware(10 * time.Millisecond))
	r.GET("/slow", func(c *gin.Context) { <-c.Request.Context().Done() })
	r.GET("/fast", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(t, r, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, xerrors.ErrRequestTimeout.Code, errorBody(t, w).Code)
	assert.Equal(t, http.StatusOK, serve(t, r, httptest.NewRequest(http.MethodGet, "/fast", nil)).Code)
}

func TestWithDeadlineOnlyTightens(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	want, _ := parent.Deadline()

	ctx, stop := withDeadline(parent, time.Hour)
	defer stop()
	got, ok := ctx.Deadline()
	require.True(t, ok)
	assert.Equal(t, want, got)

	ctx, stop = withDeadline(parent, time.Millisecond)
	defer stop()
	got, _ = ctx.Deadline()
	assert.True(t, got.Before(want))

	ctx, stop = withDeadline(context.Background(), 0)
	defer stop()
	_, ok = ctx.Deadline()
	assert.False(t, ok)
}

func TestHTTPErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(HTTPErrorHandler())
	r.GET("/x", func(c *gin.Context) { _ = c.Error(xerrors.ErrBadRequest) })

	w := serve(t, r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, xerrors.ErrBadRequest.Code, errorBody(t, w).Code)

	r.GET("/mixed", func(c *gin.Context) {
		_ = c.Error(xerrors.ErrRateLimited)
		_ = c.Error(errors.New("unrelated"))
	})
	w = serve(t, r, httptest.NewRequest(http.MethodGet, "/mixed", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, xerrors.ErrRateLimited.Code, errorBody(t, w).Code)

	r.GET("/plain", func(c *gin.Context) { _ = c.Error(errors.New("boom")) })
	assert.Equal(t, http.StatusInternalServerError, serve(t, r, httptest.NewRequest(http.MethodGet, "/plain", nil)).Code)
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := metrics.NewMetrics("lpsolver")
	r := gin.New()
	r.Use(HTTPMetricsMiddlewareWithOptions(m, MetricsOptions{SkipPaths: []string{"/healthz"}}))
	r.POST("/v1/solve", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(t, r, httptest.NewRequest(http.MethodPost, "/v1/solve", strings.NewReader("{}")))
	serve(t, r, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	serve(t, r, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/v1/solve", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "200")))
}

func TestTraceIDHeaderWithoutSpan(t *testing.T) {
	r := gin.New()
	r.Use(TraceIDHeader())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Empty(t, serve(t, r, httptest.NewRequest(http.MethodGet, "/x", nil)).Header().Get(HeaderXTraceID))
}

func TestTraceIDHeaderWithSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var traceID string
	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx, span := tp.Tracer("test").Start(c.Request.Context(), "solve")
		defer span.End()
		traceID = span.SpanContext().TraceID().String()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, TraceIDHeader())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(t, r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, traceID, w.Header().Get(HeaderXTraceID))
	assert.Len(t, traceID, 32)
}

var solveInfo = &grpc.UnaryServerInfo{FullMethod: "/lpsolver.v1.Solver/Solve"}

func TestGRPCErrorTranslator(t *testing.T) {
	intercept := GRPCErrorTranslator()
	call := func(err error) error {
		_, got := intercept(context.Background(), nil, solveInfo, func(context.Context, any) (any, error) {
			return nil, err
		})
		return got
	}

	assert.NoError(t, call(nil))
	assert.Equal(t, codes.ResourceExhausted, status.Code(call(xerrors.ErrRateLimited)))
	assert.Equal(t, codes.Internal, status.Code(call(xerrors.ErrPivotLimit)))
	assert.Equal(t, codes.NotFound, status.Code(call(status.Error(codes.NotFound, "x"))))

	plain := call(errors.New("secret detail"))
	assert.Equal(t, codes.Internal, status.Code(plain))
	assert.NotContains(t, plain.Error(), "secret")
}

func TestGRPCRecovery(t *testing.T) {
	_, err := GRPCRecovery(testLogger())(context.Background(), nil, solveInfo, func(context.Context, any) (any, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestGRPCRateLimit(t *testing.T) {
	intercept := GRPCRateLimit(limiter.NewLocalLimiter(0.001, 1), testLogger())
	ok := func(context.Context, any) (any, error) { return "ok", nil }

	resp, err := intercept(context.Background(), nil, solveInfo, ok)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	_, err = intercept(context.Background(), nil, solveInfo, ok)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	_, err = GRPCRateLimit(errLimiter{}, testLogger())(context.Background(), nil, solveInfo, ok)
	assert.NoError(t, err, "fail open")
}

func TestGRPCMetricsInterceptor(t *testing.T) {
	m := metrics.NewMetrics("lpsolver")
	intercept := GRPCMetricsInterceptor(m)

	_, _ = intercept(context.Background(), nil, solveInfo, func(context.Context, any) (any, error) { return nil, nil })
	_, _ = intercept(context.Background(), nil, solveInfo, func(context.Context, any) (any, error) {
		return nil, xerrors.ErrRequestCanceled
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GRPCRequestsTotal.WithLabelValues("lpsolver.v1.Solver", "Solve", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GRPCRequestsTotal.WithLabelValues("lpsolver.v1.Solver", "Solve", "Canceled")))
}

func TestGRPCContext(t *testing.T) {
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("10.0.0.9"), Port: 4242}})
	ctx = metadata.NewIncomingContext(ctx, metadata.Pairs(grpcUserAgentKey, "grpc-go/test", grpcRequestIDKey, "req-9"))

	chain := func(ctx context.Context, _ any) (any, error) {
		return contextx.GetIP(ctx) + "|" + contextx.GetUserAgent(ctx) + "|" + contextx.GetRequestID(ctx), nil
	}
	resp, err := GRPCContextEnricher()(ctx, nil, solveInfo, func(ctx context.Context, req any) (any, error) {
		return GRPCRequestID()(ctx, req, solveInfo, chain)
	})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9|grpc-go/test|req-9", resp)
}

func TestSplitMethod(t *testing.T) {
	service, method := splitMethod("/lpsolver.v1.Solver/Solve")
	assert.Equal(t, "lpsolver.v1.Solver", service)
	assert.Equal(t, "Solve", method)

	service, method = splitMethod("Solve")
	assert.Equal(t, "unknown", service)
	assert.Equal(t, "Solve", method)
}

func TestGRPCCode(t *testing.T) {
	assert.Equal(t, codes.OK, grpcCode(nil))
	assert.Equal(t, codes.DeadlineExceeded, grpcCode(xerrors.ErrRequestTimeout))
	assert.Equal(t, codes.Unknown, grpcCode(errors.New("x")))
}
