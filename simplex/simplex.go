// Package simplex 实现了有界变量的两阶段原始单纯形法 (Bounded-Variable Primal Simplex)。
//
// 引擎直接在变量的上下界上工作：结构变量的界不展开成约束，每条约束只引入一个
// 松弛 / 剩余列，使约束矩阵的规模只与约束数量相关。
//
// 算法概要：
//  1. 标准化：≤ 行的松弛列取值 [0,+∞)，≥ 行为 (-∞,0]，= 行为 [0,0]；
//  2. 阶段一：仅为初始基不可行的行引入人工列，最小化人工列之和；最优值严格为正即不可行；
//  3. 阶段二：最小化按方向调整后的目标，Dantzig 规则选入基列，有界比值检验选出基列；
//  4. 阶段二中入基列没有任何限制比值即判定无界；
//  5. 连续退化步数超过阈值后切换到 Bland 规则，迭代次数上限防止病态循环。
//
// 引擎是纯函数：不修改输入问题，不持有跨调用状态，可被多个 goroutine 并发调用。
package simplex

import (
	"fmt"
	"math"

	"github.com/wyfcoding/lpsolver/lp"
	"github.com/wyfcoding/lpsolver/xerrors"
)

const (
	// DefaultTolerance 最优性 (约化成本) 判定容差。
	DefaultTolerance = 1e-9
	// DefaultFeasibilityTolerance 可行性判定容差，按右端常数规模放缩。
	DefaultFeasibilityTolerance = 1e-7
	// DefaultPivotTolerance 比值检验中可接受的最小主元绝对值。
	DefaultPivotTolerance = 1e-9
	// DefaultDegenerateLimit 连续退化步数阈值，超过后切换到 Bland 规则。
	DefaultDegenerateLimit = 50
	// DefaultPivotFloor 按规模推导的迭代上限不低于此值。
	DefaultPivotFloor = 1 << 16
)

// Options 数值策略与迭代上限。字段为零值时使用对应默认值。
type Options struct {
	Tolerance            float64 // 约化成本判定容差。
	FeasibilityTolerance float64 // 可行性判定容差。
	PivotTolerance       float64 // 最小主元绝对值。
	// MaxPivots 迭代 (换基 + 界翻转) 次数上限，0 表示按问题规模推导。
	MaxPivots       int
	DegenerateLimit int // 连续退化步数阈值。
}

// DefaultOptions 返回默认数值策略。
func DefaultOptions() Options {
	return Options{
		Tolerance:            DefaultTolerance,
		FeasibilityTolerance: DefaultFeasibilityTolerance,
		PivotTolerance:       DefaultPivotTolerance,
		DegenerateLimit:      DefaultDegenerateLimit,
	}
}

// withDefaults 用默认值填充零值字段。
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.FeasibilityTolerance <= 0 {
		o.FeasibilityTolerance = d.FeasibilityTolerance
	}
	if o.PivotTolerance <= 0 {
		o.PivotTolerance = d.PivotTolerance
	}
	if o.DegenerateLimit <= 0 {
		o.DegenerateLimit = d.DegenerateLimit
	}
	return o
}

// pivotCeiling 依据问题规模推导迭代上限：max(DefaultPivotFloor, 50·(rows+cols), 2·rows·cols)。
func (o Options) pivotCeiling(rows, cols int) int {
	if o.MaxPivots > 0 {
		return o.MaxPivots
	}
	return max(DefaultPivotFloor, 50*(rows+cols), 2*rows*cols)
}

// Stats 一次求解的迭代统计。
type Stats struct {
	Rows             int // 约束行数。
	Columns          int // 结构列 + 松弛列 + 人工列。
	Artificials      int // 阶段一引入的人工列数。
	Phase1Pivots     int // 阶段一换基次数 (含人工列驱离)。
	Phase2Pivots     int // 阶段二换基次数。
	BoundFlips       int // 入基列直接翻转到另一侧界的次数。
	DegenerateSteps  int // 零步长迭代次数。
	BlandActivations int // 切换到 Bland 规则的次数。
}

// Iterations 返回计入迭代上限的总步数。
func (s Stats) Iterations() int {
	return s.Phase1Pivots + s.Phase2Pivots + s.BoundFlips
}

// Solve 求解已构建的问题。
// 返回 lp.ErrMalformedInput / lp.ErrInfeasible / lp.ErrUnbounded 三种模型化失败之一，
// 或 xerrors.ErrPivotLimit / xerrors.ErrNumericalBreakdown 等内部缺陷。
func Solve(p *lp.Problem, opts Options) (lp.Solution, Stats, error) {
	if err := p.Validate(); err != nil {
		return lp.Solution{}, Stats{}, err
	}

	e := newEngine(p, opts.withDefaults())

	if e.stats.Artificials > 0 {
		if err := e.phase1(); err != nil {
			return lp.Solution{}, e.stats, err
		}
	}

	if err := e.phase2(); err != nil {
		return lp.Solution{}, e.stats, err
	}

	return e.solution(p), e.stats, nil
}

// MustSolve 仅用于测试与示例：遇到任何错误即 panic。
func MustSolve(p *lp.Problem) lp.Solution {
	sol, _, err := Solve(p, DefaultOptions())
	if err != nil {
		panic(fmt.Sprintf("simplex: %v", err))
	}
	return sol
}

// solution 读取最终基上的结构变量取值，并按原始系数重新计算目标值。
func (e *engine) solution(p *lp.Problem) lp.Solution {
	e.refreshBasics()

	values := make([]float64, e.n)
	for j := range values {
		values[j] = e.snap(j)
	}

	var objective float64
	for j, v := range p.Variables {
		objective += v.Coefficient * values[j]
	}
	if objective == 0 {
		objective = 0 // 消除 -0
	}

	return lp.Solution{Objective: objective, Values: values}
}

// snap 将容差内贴近界的取值归到界上。
func (e *engine) snap(j int) float64 {
	v := e.x[j]
	lo, hi := e.lo[j], e.hi[j]
	tol := e.opts.FeasibilityTolerance
	if !math.IsInf(lo, -1) && math.Abs(v-lo) <= tol*math.Max(1, math.Abs(lo)) {
		v = lo
	}
	if !math.IsInf(hi, 1) && math.Abs(v-hi) <= tol*math.Max(1, math.Abs(hi)) {
		v = hi
	}
	if v == 0 {
		v = 0
	}
	return v
}

func errPivotLimit(limit int, stats Stats) error {
	return fmt.Errorf("%w: %d iterations (phase1=%d phase2=%d flips=%d)",
		xerrors.ErrPivotLimit, limit, stats.Phase1Pivots, stats.Phase2Pivots, stats.BoundFlips)
}
