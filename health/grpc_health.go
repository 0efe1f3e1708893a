package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// DefaultWatchInterval 是 Watch 重新评估 Registry 的间隔。
const DefaultWatchInterval = 5 * time.Second

// GRPCHealthServer 以 Registry 为数据源实现 grpc.health.v1.Health，与 HTTP /readyz 结论一致。
// registry 为 nil 时始终 SERVING。
type GRPCHealthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	service       string
	registry      *Registry
	watchInterval time.Duration
}

func NewGRPCHealthServer(service string, registry *Registry) *GRPCHealthServer {
	return &GRPCHealthServer{service: service, registry: registry, watchInterval: DefaultWatchInterval}
}

// RegisterGRPCHealthServer 在 s 上注册 Health 服务。
func RegisterGRPCHealthServer(s grpc.ServiceRegistrar, service string, registry *Registry) {
	grpc_health_v1.RegisterHealthServer(s, NewGRPCHealthServer(service, registry))
}

// statusFor 对本服务名或空服务名（整体）返回检查结果，其他服务名为 SERVICE_UNKNOWN。
func (g *GRPCHealthServer) statusFor(ctx context.Context, service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if service != "" && g.service != "" && service != g.service {
		return grpc_health_v1.HealthCheckResponse_SERVICE_UNKNOWN
	}
	if g.registry == nil || g.registry.Check(ctx).Healthy() {
		return grpc_health_v1.HealthCheckResponse_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_NOT_SERVING
}

func (g *GRPCHealthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	return &grpc_health_v1.HealthCheckResponse{Status: g.statusFor(ctx, req.GetService())}, nil
}

func (g *GRPCHealthServer) List(ctx context.Context, _ *grpc_health_v1.HealthListRequest) (*grpc_health_v1.HealthListResponse, error) {
	st := &grpc_health_v1.HealthCheckResponse{Status: g.statusFor(ctx, "")}
	statuses := map[string]*grpc_health_v1.HealthCheckResponse{"": st}
	if g.service != "" {
		statuses[g.service] = st
	}
	return &grpc_health_v1.HealthListResponse{Statuses: statuses}, nil
}

// Watch 先发送当前状态，之后每个间隔重新检查一次，仅在状态变化时推送。
func (g *GRPCHealthServer) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc.ServerStreamingServer[grpc_health_v1.HealthCheckResponse]) error {
	ctx := stream.Context()
	ticker := time.NewTicker(g.watchInterval)
	defer ticker.Stop()

	last := grpc_health_v1.HealthCheckResponse_ServingStatus(-1)
	for {
		if st := g.statusFor(ctx, req.GetService()); st != last {
			if err := stream.Send(&grpc_health_v1.HealthCheckResponse{Status: st}); err != nil {
				return err
			}
			last = st
		}
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case <-ticker.C:
		}
	}
}

// GRPCChecker 通过 grpc.health.v1 探测远端服务，service 为空时探测整体状态。
func GRPCChecker(addr, service string) Checker {
	return GRPCCheckerWithOptions(addr, service)
}

// GRPCCheckerWithOptions 同 GRPCChecker，可指定拨号选项；未指定时使用明文连接。
func GRPCCheckerWithOptions(addr, service string, opts ...grpc.DialOption) Checker {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	return func(ctx context.Context) error {
		if addr == "" {
			return errors.New("grpc health addr is empty")
		}
		conn, err := grpc.NewClient(addr, opts...)
		if err != nil {
			return fmt.Errorf("dial %s: %w", addr, err)
		}
		defer conn.Close()

		resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
		if err != nil {
			return fmt.Errorf("grpc health check: %w", err)
		}
		if st := resp.GetStatus(); st != grpc_health_v1.HealthCheckResponse_SERVING {
			return fmt.Errorf("grpc health status: %s", st)
		}
		return nil
	}
}
