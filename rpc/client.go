package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/wyfcoding/lpsolver/codec"
	"github.com/wyfcoding/lpsolver/middleware"
	"github.com/wyfcoding/lpsolver/retry"
)

// Client 是 lpsolver.v1.Solver 的客户端。
type Client struct {
	conn  *grpc.ClientConn
	retry retry.Config
}

// Dial 创建客户端。未传入选项时使用明文连接，并启用追踪上下文传播。
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	opts = append(opts, middleware.GrpcTracingDialOption())

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// WithRetry 设置 Unavailable 与 ResourceExhausted 的重试策略，默认不重试。
func (c *Client) WithRetry(cfg retry.Config) *Client {
	c.retry = cfg
	return c
}

// SolveRaw 发送 JSON 请求并返回 JSON 结果原文。
func (c *Client) SolveRaw(ctx context.Context, data []byte) ([]byte, error) {
	in := json.RawMessage(data)
	out := new(json.RawMessage)
	err := retry.Do(ctx, c.retry, retry.Retryable, func(ctx context.Context, _ int) error {
		return c.conn.Invoke(ctx, SolveMethod, &in, out, grpc.CallContentSubtype(CodecName))
	})
	if err != nil {
		return nil, err
	}
	return *out, nil
}

// Solve 发送 JSON 请求并解码结果。
func (c *Client) Solve(ctx context.Context, data []byte) (codec.Outcome, error) {
	raw, err := c.SolveRaw(ctx, data)
	if err != nil {
		return codec.Outcome{}, err
	}
	var out codec.Outcome
	if err := json.Unmarshal(raw, &out); err != nil {
		return codec.Outcome{}, fmt.Errorf("rpc: decode outcome: %w", err)
	}
	return out, nil
}

// Close 关闭底层连接。
func (c *Client) Close() error {
	return c.conn.Close()
}
