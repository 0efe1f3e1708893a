package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/wyfcoding/lpsolver/config"
	"github.com/wyfcoding/lpsolver/redis"
	"github.com/wyfcoding/lpsolver/simplex"
)

func up(context.Context) error { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry(0)
	assert.True(t, r.Check(context.Background()).Healthy(), "empty registry is healthy")

	r.Register("solver", SolverChecker(simplex.DefaultOptions))
	r.Register("noop", up)
	report := r.Check(context.Background())
	assert.True(t, report.Healthy())
	assert.Equal(t, map[string]string{"solver": "up", "noop": "up"}, report.Checks)

	r.Register("redis", func(context.Context) error { return errors.New("connection refused") })
	report = r.Check(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.Equal(t, "connection refused", report.Checks["redis"])
	assert.Equal(t, []string{"noop", "redis", "solver"}, r.Names())
}

func TestRegistryTimeout(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)
	r.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	report := r.Check(context.Background())
	assert.False(t, report.Healthy())
	assert.Contains(t, report.Checks["slow"], "deadline")
}

func TestSolverCheckerDetectsBrokenEngine(t *testing.T) {
	broken := func() simplex.Options {
		o := simplex.DefaultOptions()
		o.MaxPivots = 1
		return o
	}
	assert.Error(t, SolverChecker(broken)(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SolverChecker(simplex.DefaultOptions)(ctx), context.Canceled)
}

func TestRedisChecker(t *testing.T) {
	assert.Error(t, RedisChecker(nil)(context.Background()))

	client := redis.New(&config.RedisConfig{Addrs: []string{"127.0.0.1:1"}, DialTimeout: 50 * time.Millisecond}, nil)
	t.Cleanup(func() { _ = client.Close() })
	assert.Error(t, RedisChecker(client)(context.Background()))
}

func TestHTTPChecker(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))
	defer ok.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) }))
	defer bad.Close()

	assert.NoError(t, HTTPChecker(ok.URL)(context.Background()))
	assert.Error(t, HTTPChecker(bad.URL)(context.Background()))
	assert.Error(t, HTTPChecker("")(context.Background()))
}

func TestGRPCHealth(t *testing.T) {
	registry := NewRegistry(0)
	var healthy atomic.Bool
	healthy.Store(true)
	registry.Register("toggle", func(context.Context) error {
		if healthy.Load() {
			return nil
		}
		return errors.New("down")
	})

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	hs := NewGRPCHealthServer("lpsolver.v1.Solver", registry)
	hs.watchInterval = 5 * time.Millisecond
	grpc_health_v1.RegisterHealthServer(s, hs)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) })
	creds := grpc.WithTransportCredentials(insecure.NewCredentials())
	ctx := context.Background()

	check := GRPCCheckerWithOptions("passthrough:///bufnet", "", dialer, creds)
	require.NoError(t, check(ctx))

	conn, err := grpc.NewClient("passthrough:///bufnet", dialer, creds)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	client := grpc_health_v1.NewHealthClient(conn)

	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: "other"})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVICE_UNKNOWN, resp.GetStatus())

	list, err := client.List(ctx, &grpc_health_v1.HealthListRequest{})
	require.NoError(t, err)
	assert.Len(t, list.GetStatuses(), 2)

	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	watch, err := client.Watch(wctx, &grpc_health_v1.HealthCheckRequest{Service: "lpsolver.v1.Solver"})
	require.NoError(t, err)
	first, err := watch.Recv()
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, first.GetStatus())

	healthy.Store(false)
	next, err := watch.Recv()
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, next.GetStatus())
	cancel()

	resp, err = client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: "lpsolver.v1.Solver"})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
	assert.Error(t, check(ctx))

	assert.Error(t, GRPCChecker("", "")(ctx))
}
