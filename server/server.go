// Package server 提供 HTTP (gin) 与 gRPC 两种求解服务的监听、优雅关闭与参数装配。
package server

import (
	"context"
	"net"
)

// Server 是 app 统一管理的监听服务。
// Start 阻塞直到监听结束；Stop 等待在途请求完成，超时后强制关闭。
type Server interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Listener 允许在已有监听上提供服务，测试与端口复用时使用。
type Listener interface {
	Server
	Serve(ctx context.Context, lis net.Listener) error
}

var (
	_ Listener = (*GinServer)(nil)
	_ Listener = (*GRPCServer)(nil)
)
