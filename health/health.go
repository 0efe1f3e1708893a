// Package health 提供命名健康检查的注册、聚合执行，以及 HTTP/gRPC 两种暴露方式共用的检查结果。
package health

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/lpsolver/lp"
	"github.com/wyfcoding/lpsolver/redis"
	"github.com/wyfcoding/lpsolver/simplex"
)

// Checker 定义健康检查函数原型。
type Checker func(ctx context.Context) error

// Status 描述单项或整体的健康状态。
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// DefaultTimeout 单项检查的默认超时。
const DefaultTimeout = 2 * time.Second

// Report 是一次检查的结果快照。
type Report struct {
	Status Status            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"` // 名称 -> "up" 或错误信息
}

// Healthy 报告是否全部通过。
func (r Report) Healthy() bool {
	return r.Status == StatusUp
}

// Registry 保存命名检查项，并发执行并汇总。零值不可用，需通过 NewRegistry 创建。
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	timeout  time.Duration
}

// NewRegistry 创建检查注册表，timeout <= 0 时使用 DefaultTimeout。
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{checkers: make(map[string]Checker), timeout: timeout}
}

// Register 注册或替换同名检查项。
func (r *Registry) Register(name string, c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = c
}

// Names 返回已注册的检查项名称（有序）。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check 并发执行全部检查项，每项受独立超时约束。没有检查项时视为健康。
func (r *Registry) Check(ctx context.Context) Report {
	r.mu.RLock()
	checkers := make(map[string]Checker, len(r.checkers))
	for name, c := range r.checkers {
		checkers[name] = c
	}
	r.mu.RUnlock()

	report := Report{Status: StatusUp, Checks: make(map[string]string, len(checkers))}
	var mu sync.Mutex
	var g errgroup.Group
	for name, c := range checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			err := c(cctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Status = StatusDown
				report.Checks[name] = err.Error()
				return nil
			}
			report.Checks[name] = string(StatusUp)
			return nil
		})
	}
	_ = g.Wait()
	return report
}

// SolverChecker 用当前引擎参数求解一个固定的小问题，确认引擎可用且结果正确。
// 直接调用引擎，不经过缓存，也不计入求解指标。
func SolverChecker(options func() simplex.Options) Checker {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		// maximize x + y, x + 2y <= 4, x <= 3 → x = 3, y = 0.5, 目标值 3.5
		p := lp.NewProblem(lp.Maximize)
		x := p.AddVar(1, 0, math.Inf(1))
		y := p.AddVar(1, 0, math.Inf(1))
		p.AddConstraint([]lp.Summand{{Variable: x, Coefficient: 1}, {Variable: y, Coefficient: 2}}, lp.Le, 4)
		p.AddConstraint([]lp.Summand{{Variable: x, Coefficient: 1}}, lp.Le, 3)

		sol, _, err := simplex.Solve(p, options())
		if err != nil {
			return fmt.Errorf("canary solve failed: %w", err)
		}
		if math.Abs(sol.Objective-3.5) > 1e-6 {
			return fmt.Errorf("canary objective %g, want 3.5", sol.Objective)
		}
		return nil
	}
}

// RedisChecker 返回 Redis 健康检查函数。
func RedisChecker(client redis.Client) Checker {
	return func(ctx context.Context) error {
		if client == nil {
			return errors.New("redis client is nil")
		}
		return client.Ping(ctx).Err()
	}
}

// HTTPChecker 返回 HTTP 依赖健康检查函数，状态码 >= 400 视为不健康。
func HTTPChecker(url string) Checker {
	return func(ctx context.Context) error {
		if url == "" {
			return errors.New("health check url is empty")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("http health check status: %d", resp.StatusCode)
		}
		return nil
	}
}
