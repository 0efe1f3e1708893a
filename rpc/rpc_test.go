package rpc

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/wyfcoding/lpsolver/codec"
	"github.com/wyfcoding/lpsolver/config"
	"github.com/wyfcoding/lpsolver/health"
	"github.com/wyfcoding/lpsolver/limiter"
	"github.com/wyfcoding/lpsolver/logging"
	"github.com/wyfcoding/lpsolver/lp"
	"github.com/wyfcoding/lpsolver/metrics"
	"github.com/wyfcoding/lpsolver/retry"
	"github.com/wyfcoding/lpsolver/simplex"
	"github.com/wyfcoding/lpsolver/solver"
	"github.com/wyfcoding/lpsolver/xerrors"
)

const scenario = `{"direction":"maximize",
	"variables":[{"minimum":0,"maximum":4,"coefficient":2},{"minimum":0,"maximum":4,"coefficient":3}],
	"constraints":[{"expression":[{"variable":0,"coefficient":1},{"variable":1,"coefficient":1}],"comparison":"le","constant":4}]}`

type fixture struct {
	client  *Client
	conn    *grpc.ClientConn
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, lim limiter.Limiter, opts ...solver.Option) fixture {
	t.Helper()
	logger := logging.NewWithWriter(io.Discard, "lpsolver", "test")
	m := metrics.NewMetrics("lpsolver")
	svc := solver.New(append([]solver.Option{solver.WithLogger(logger), solver.WithMetrics(m)}, opts...)...)

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		Interceptors(config.ServerConfig{}, InterceptorDeps{Logger: logger, Metrics: m, Limiter: lim})...))
	Register(s, svc)
	health.RegisterGRPCHealthServer(s, ServiceName, nil)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) })
	creds := grpc.WithTransportCredentials(insecure.NewCredentials())

	client, err := Dial("passthrough:///bufnet", dialer, creds)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	conn, err := grpc.NewClient("passthrough:///bufnet", dialer, creds)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return fixture{client: client, conn: conn, metrics: m}
}

func TestSolve(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	out, err := f.client.Solve(ctx, []byte(scenario))
	require.NoError(t, err)
	assert.Equal(t, codec.Success(lp.Solution{Objective: 12, Values: []float64{0, 4}}), out)

	raw, err := f.client.SolveRaw(ctx, []byte(scenario))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"success","value":{"objective":12,"values":[0,4]}}`, string(raw))

	// 模型化失败以 OK 状态返回。
	out, err = f.client.Solve(ctx, []byte(`{"direction":"maximize"}`))
	require.NoError(t, err)
	assert.Equal(t, codec.Failure(lp.FailureBadFormat), out)

	out, err = f.client.Solve(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, codec.Failure(lp.FailureBadFormat), out)

	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.GRPCRequestsTotal.WithLabelValues(ServiceName, "Solve", "OK")))
}

func TestSolveInternalDefect(t *testing.T) {
	opts := simplex.DefaultOptions()
	opts.MaxPivots = 1
	f := newFixture(t, nil, solver.WithOptions(opts))

	_, err := f.client.Solve(context.Background(), []byte(scenario))
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Equal(t, xerrors.ErrPivotLimit.Message, st.Message())
}

func TestSolveRateLimited(t *testing.T) {
	f := newFixture(t, limiter.NewLocalLimiter(0.001, 1))
	ctx := context.Background()

	_, err := f.client.Solve(ctx, []byte(scenario))
	require.NoError(t, err)
	_, err = f.client.Solve(ctx, []byte(scenario))
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	resp, err := grpc_health_v1.NewHealthClient(f.conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err, "health checks bypass the limiter")
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestSolveRetriesRateLimit(t *testing.T) {
	f := newFixture(t, limiter.NewLocalLimiter(0.001, 1))
	ctx := context.Background()
	f.client.WithRetry(retry.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2})

	_, err := f.client.Solve(ctx, []byte(scenario))
	require.NoError(t, err)

	_, err = f.client.Solve(ctx, []byte(scenario))
	require.Error(t, err)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.GRPCRequestsTotal.WithLabelValues(ServiceName, "Solve", "ResourceExhausted")))
}

func TestSolveDeadline(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.client.Solve(ctx, []byte(scenario))
	assert.Equal(t, codes.Canceled, status.Code(err))
}

func TestRawCodec(t *testing.T) {
	c := rawCodec{}
	assert.Equal(t, CodecName, c.Name())

	msg := json.RawMessage(`{"a":1}`)
	data, err := c.Marshal(&msg)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	data, err = c.Marshal([]byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))

	_, err = c.Marshal(42)
	assert.Error(t, err)

	var back json.RawMessage
	require.NoError(t, c.Unmarshal([]byte(`[1]`), &back))
	assert.Equal(t, `[1]`, string(back))
	assert.Error(t, c.Unmarshal([]byte(`[1]`), new(string)))
}
