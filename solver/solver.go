// Package solver 提供求解服务边界：所有外部绑定 (HTTP、gRPC、命令行) 都经由 Service 调用引擎。
//
// Service 在纯函数引擎之外负责链路追踪、指标、日志、结果复核与按问题指纹的结果缓存。
// 同一问题在同一数值策略下的求解结果恒定，因此可以安全地缓存全部模型化结果。
package solver

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"github.com/wyfcoding/lpsolver/cache"
	"github.com/wyfcoding/lpsolver/codec"
	"github.com/wyfcoding/lpsolver/contextx"
	"github.com/wyfcoding/lpsolver/limiter"
	"github.com/wyfcoding/lpsolver/logging"
	"github.com/wyfcoding/lpsolver/lp"
	"github.com/wyfcoding/lpsolver/metrics"
	"github.com/wyfcoding/lpsolver/simplex"
	"github.com/wyfcoding/lpsolver/tracing"
	"github.com/wyfcoding/lpsolver/xerrors"
)

const (
	// DefaultCacheTTL 缓存项的默认过期时间。
	DefaultCacheTTL = 10 * time.Minute
	// DefaultVerifyTolerance 结果复核的默认相对容差。
	DefaultVerifyTolerance = 1e-6

	outcomeInternal = "internal"
)

// Service 是求解服务，可被多个 goroutine 并发使用。
type Service struct {
	opts      atomic.Pointer[simplex.Options]
	logger    *logging.Logger
	metrics   *metrics.Metrics
	cache     cache.Cache
	ttl       time.Duration
	verify    bool
	verifyTol float64
	slow      time.Duration
	sem       *limiter.SemaphoreLimiter
	group     singleflight.Group
}

// New 创建求解服务。
func New(opts ...Option) *Service {
	s := &Service{
		logger:    logging.Default(),
		ttl:       DefaultCacheTTL,
		verifyTol: DefaultVerifyTolerance,
	}
	defaults := simplex.DefaultOptions()
	s.opts.Store(&defaults)

	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithModule("solver")
	return s
}

// Options 返回当前生效的引擎选项。
func (s *Service) Options() simplex.Options {
	return *s.opts.Load()
}

// UpdateOptions 原子替换引擎选项，正在进行的求解不受影响。
func (s *Service) UpdateOptions(o simplex.Options) {
	s.opts.Store(&o)
	s.logger.Info("solver options updated",
		"tolerance", o.Tolerance,
		"feasibility_tolerance", o.FeasibilityTolerance,
		"max_pivots", o.MaxPivots,
		"degenerate_limit", o.DegenerateLimit,
	)
}

// Solve 求解已构建的问题。
// 模型化失败返回 lp.ErrInfeasible / lp.ErrUnbounded / lp.ErrMalformedInput，
// 其余错误均为 xerrors 内部缺陷。
func (s *Service) Solve(ctx context.Context, p *lp.Problem) (lp.Solution, error) {
	if p == nil {
		return lp.Solution{}, fmt.Errorf("%w: nil problem", lp.ErrMalformedInput)
	}

	ctx, span := tracing.StartSpan(ctx, "solver.Solve")
	defer span.End()

	if err := ctx.Err(); err != nil {
		err = contextError(err)
		tracing.SetError(ctx, err)
		return lp.Solution{}, err
	}

	if err := s.sem.Acquire(ctx); err != nil {
		err = contextError(err)
		tracing.SetError(ctx, err)
		return lp.Solution{}, err
	}
	defer s.sem.Release()

	tracing.AddTag(ctx, "lp.direction", p.Direction.String())
	tracing.AddTag(ctx, "lp.variables", p.NumVars())
	tracing.AddTag(ctx, "lp.constraints", p.NumConstraints())

	opts := s.Options()
	start := time.Now()
	sol, stats, err := simplex.Solve(p, opts)
	elapsed := time.Since(start)

	if err == nil && s.verify {
		err = s.check(p, sol)
	}

	label := outcomeLabel(err)
	s.metrics.ObserveSolve(label, elapsed)
	s.metrics.ObserveProblem(p.NumVars(), p.NumConstraints())
	if label != string(lp.FailureBadFormat) {
		s.metrics.ObserveIterations(stats.Phase1Pivots, stats.Phase2Pivots, stats.BoundFlips)
	}

	tracing.AddTag(ctx, "lp.outcome", label)
	tracing.AddTag(ctx, "simplex.iterations", stats.Iterations())

	attrs := append(contextx.LogAttrs(ctx),
		"outcome", label,
		"variables", p.NumVars(),
		"constraints", p.NumConstraints(),
		"iterations", stats.Iterations(),
		"artificials", stats.Artificials,
		"bland_activations", stats.BlandActivations,
		"duration", elapsed,
	)
	switch {
	case label == outcomeInternal:
		tracing.SetError(ctx, err)
		s.logger.ErrorContext(ctx, "solve failed", append(attrs, "error", err)...)
	case s.slow > 0 && elapsed > s.slow:
		s.logger.WarnContext(ctx, "slow solve", attrs...)
	default:
		s.logger.DebugContext(ctx, "solve finished", attrs...)
	}

	if err != nil {
		return lp.Solution{}, err
	}
	return sol, nil
}

// SolveRequest 解码 JSON 请求并求解，返回模型化结果。
// 只有内部缺陷才返回非 nil 错误，四种模型化结果均以 Outcome 返回。
func (s *Service) SolveRequest(ctx context.Context, data []byte) (codec.Outcome, error) {
	p, err := codec.Decode(data)
	if err != nil {
		s.metrics.ObserveSolve(string(lp.FailureBadFormat), 0)
		s.logger.DebugContext(ctx, "rejected malformed request", "error", err)
		out, _ := codec.FromError(err)
		return out, nil
	}
	return s.SolveProblem(ctx, p)
}

// SolveProblem 求解已解码的问题，并按问题指纹与引擎选项读写结果缓存。
//
// 相同键的并发请求共享一次求解。共享的求解脱离发起者的取消信号运行，
// 每个调用方只等待自己的 ctx，取消或超时只影响该调用方本身。
func (s *Service) SolveProblem(ctx context.Context, p *lp.Problem) (codec.Outcome, error) {
	if s.cache == nil || p == nil {
		return s.solveOutcome(ctx, p)
	}

	fp, err := codec.Fingerprint(p)
	if err != nil {
		s.logger.WarnContext(ctx, "cannot fingerprint problem", "error", err)
		return s.solveOutcome(ctx, p)
	}
	ctx = contextx.WithFingerprint(ctx, fp)
	key := s.cacheKey(fp)

	var cached codec.Outcome
	switch err := s.cache.Get(ctx, key, &cached); {
	case err == nil:
		s.metrics.ObserveCache("hit")
		tracing.AddTag(ctx, "lp.cache", "hit")
		return cached, nil
	case errors.Is(err, cache.ErrCacheMiss):
		s.metrics.ObserveCache("miss")
	default:
		s.metrics.ObserveCache("error")
		s.logger.WarnContext(ctx, "outcome cache lookup failed", "key", key, "error", err)
	}

	if err := ctx.Err(); err != nil {
		return codec.Outcome{}, contextError(err)
	}

	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		out, err := s.solveOutcome(detached, p)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(detached, key, out, s.ttl); err != nil {
			s.logger.WarnContext(detached, "outcome cache store failed", "key", key, "error", err)
		}
		return out, nil
	})

	select {
	case <-ctx.Done():
		err := contextError(ctx.Err())
		tracing.SetError(ctx, err)
		return codec.Outcome{}, err
	case res := <-ch:
		if res.Err != nil {
			return codec.Outcome{}, res.Err
		}
		if res.Shared {
			tracing.AddTag(ctx, "lp.shared", true)
		}
		return res.Val.(codec.Outcome), nil
	}
}

func (s *Service) solveOutcome(ctx context.Context, p *lp.Problem) (codec.Outcome, error) {
	sol, err := s.Solve(ctx, p)
	if err == nil {
		return codec.Success(sol), nil
	}
	if out, ok := codec.FromError(err); ok {
		return out, nil
	}
	return codec.Outcome{}, err
}

// cacheKey 由问题指纹与选项摘要组成，选项变化后旧结果不会被复用。
func (s *Service) cacheKey(fp string) string {
	return fp + ":" + optionsDigest(s.Options())
}

func optionsDigest(o simplex.Options) string {
	sum := blake2b.Sum256(fmt.Appendf(nil, "%g|%g|%g|%d|%d",
		o.Tolerance, o.FeasibilityTolerance, o.PivotTolerance, o.MaxPivots, o.DegenerateLimit))
	return hex.EncodeToString(sum[:8])
}

// check 复核最优解满足全部变量界与约束，且报告的目标值与按取值重算的结果一致。
func (s *Service) check(p *lp.Problem, sol lp.Solution) error {
	if err := p.CheckFeasible(sol.Values, s.verifyTol); err != nil {
		return xerrors.ErrVerification.WithCause(err)
	}
	want := p.Evaluate(sol.Values)
	if math.Abs(sol.Objective-want) > s.verifyTol*math.Max(1, math.Abs(want)) {
		return xerrors.ErrVerification.WithCause(
			fmt.Errorf("lp: objective %v differs from evaluated %v", sol.Objective, want))
	}
	return nil
}

func outcomeLabel(err error) string {
	if err == nil {
		return string(codec.OutcomeSuccess)
	}
	if kind, ok := lp.KindOf(err); ok {
		return string(kind)
	}
	return outcomeInternal
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return xerrors.ErrRequestTimeout.WithCause(err)
	}
	return xerrors.ErrRequestCanceled.WithCause(err)
}
