package simplex

import (
	"errors"
	"fmt"
	"math"

	"github.com/wyfcoding/lpsolver/lp"
	"github.com/wyfcoding/lpsolver/xerrors"
	"gonum.org/v1/gonum/floats"
)

type columnKind uint8

const (
	structural columnKind = iota
	logical
	artificial
)

// varState 列在当前基下的状态。
type varState uint8

const (
	basic varState = iota
	atLower
	atUpper
	atZero // 自由变量非基时取 0
)

type engine struct {
	opts  Options
	m, n  int // 约束行数, 结构列数
	ncols int

	kind  []columnKind
	lo    []float64
	hi    []float64
	x     []float64
	state []varState
	basis []int // 行 -> 基列

	tab *tableau
	d   []float64 // 当前阶段的约化成本

	cost2  []float64 // 阶段二 (按方向调整后) 的成本
	bScale float64   // max(1, max|b_i|)

	limit int
	degen int
	bland bool
	phase int
	stats Stats
}

// newEngine 标准化问题并构建初始基。
// 结构列取界上的初值，能被松弛列吸收的行以松弛列为基，
// 其余行按残差符号放缩后以人工列为基，使初始基为单位阵。
func newEngine(p *lp.Problem, opts Options) *engine {
	m, n := len(p.Constraints), len(p.Variables)

	// 合并重复项为稠密行。
	rows := make([][]float64, m)
	for i, c := range p.Constraints {
		row := make([]float64, n)
		for _, s := range c.Expression {
			row[s.Variable] += s.Coefficient
		}
		rows[i] = row
	}

	x0 := make([]float64, n)
	st0 := make([]varState, n)
	for j, v := range p.Variables {
		switch {
		case !math.IsInf(v.Lower, -1):
			x0[j], st0[j] = v.Lower, atLower
		case !math.IsInf(v.Upper, 1):
			x0[j], st0[j] = v.Upper, atUpper
		default:
			x0[j], st0[j] = 0, atZero
		}
	}

	type rowPlan struct {
		sign     float64
		slackLo  float64
		slackHi  float64
		slackVal float64
		artVal   float64
		needArt  bool
	}
	plans := make([]rowPlan, m)
	bScale := 1.0
	artificials := 0
	tol := opts.FeasibilityTolerance

	for i, c := range p.Constraints {
		bScale = math.Max(bScale, math.Abs(c.Constant))

		var act float64
		for j, a := range rows[i] {
			if a != 0 {
				act += a * x0[j]
			}
		}
		s := c.Constant - act

		pl := rowPlan{sign: 1}
		switch c.Comparison {
		case lp.Le:
			pl.slackLo, pl.slackHi = 0, math.Inf(1)
		case lp.Ge:
			pl.slackLo, pl.slackHi = math.Inf(-1), 0
		case lp.Eq:
			pl.slackLo, pl.slackHi = 0, 0
		}

		fits := s >= pl.slackLo-tol*math.Max(1, math.Abs(c.Constant)) &&
			s <= pl.slackHi+tol*math.Max(1, math.Abs(c.Constant))
		if fits {
			pl.slackVal = s
		} else {
			clamped := math.Min(math.Max(s, pl.slackLo), pl.slackHi)
			r := s - clamped
			if r < 0 {
				pl.sign = -1
			}
			pl.slackVal = clamped
			pl.artVal = math.Abs(r)
			pl.needArt = true
			artificials++
		}
		plans[i] = pl
	}

	ncols := n + m + artificials
	e := &engine{
		opts:   opts,
		m:      m,
		n:      n,
		ncols:  ncols,
		kind:   make([]columnKind, ncols),
		lo:     make([]float64, ncols),
		hi:     make([]float64, ncols),
		x:      make([]float64, ncols),
		state:  make([]varState, ncols),
		basis:  make([]int, m),
		tab:    newTableau(m, ncols),
		d:      make([]float64, ncols),
		cost2:  make([]float64, ncols),
		bScale: bScale,
		limit:  opts.pivotCeiling(m, ncols),
	}
	e.stats.Rows = m
	e.stats.Columns = ncols
	e.stats.Artificials = artificials

	for j, v := range p.Variables {
		e.kind[j] = structural
		e.lo[j], e.hi[j] = v.Lower, v.Upper
		e.x[j], e.state[j] = x0[j], st0[j]
		c := v.Coefficient
		if p.Direction == lp.Maximize {
			c = -c
		}
		e.cost2[j] = c
	}

	next := n + m
	for i, c := range p.Constraints {
		pl := plans[i]
		sc := n + i
		e.kind[sc] = logical
		e.lo[sc], e.hi[sc] = pl.slackLo, pl.slackHi
		e.x[sc] = pl.slackVal

		row := e.tab.row(i)
		for j, a := range rows[i] {
			row[j] = pl.sign * a
		}
		row[sc] = pl.sign
		row[ncols] = pl.sign * c.Constant

		if !pl.needArt {
			e.basis[i] = sc
			e.state[sc] = basic
			continue
		}

		switch {
		case pl.slackVal == pl.slackLo:
			e.state[sc] = atLower
		default:
			e.state[sc] = atUpper
		}

		ac := next
		next++
		e.kind[ac] = artificial
		e.lo[ac], e.hi[ac] = 0, math.Inf(1)
		e.x[ac] = pl.artVal
		e.state[ac] = basic
		e.basis[i] = ac
		row[ac] = 1
	}

	return e
}

// phase1 最小化人工列之和以获得可行基。
func (e *engine) phase1() error {
	e.phase = 1
	cost := make([]float64, e.ncols)
	for j, k := range e.kind {
		if k == artificial {
			cost[j] = 1
		}
	}
	e.computeReducedCosts(cost)

	if err := e.iterate(); err != nil {
		if errors.Is(err, errNoLimit) {
			return fmt.Errorf("%w: phase 1 objective unbounded below", xerrors.ErrNumericalBreakdown)
		}
		return err
	}

	e.refreshBasics()

	var infeasibility float64
	for j, k := range e.kind {
		if k == artificial {
			infeasibility += math.Abs(e.x[j])
		}
	}
	if infeasibility > e.opts.FeasibilityTolerance*e.bScale {
		return fmt.Errorf("%w: residual %.3g", lp.ErrInfeasible, infeasibility)
	}

	e.driveOutArtificials()
	e.refreshBasics()
	return nil
}

// driveOutArtificials 将仍在基中的人工列替换为非人工列；
// 找不到可用主元的行是冗余行，其人工列固定在 [0,0] 留在基中。
func (e *engine) driveOutArtificials() {
	for r := 0; r < e.m; r++ {
		b := e.basis[r]
		if e.kind[b] != artificial {
			continue
		}

		best, bestAbs := -1, e.opts.PivotTolerance
		for j := 0; j < e.ncols; j++ {
			if e.kind[j] == artificial || e.state[j] == basic {
				continue
			}
			if a := math.Abs(e.tab.at(r, j)); a > bestAbs {
				best, bestAbs = j, a
			}
		}

		e.fix(b)
		if best < 0 {
			continue
		}

		e.x[b] = 0
		e.state[b] = atLower
		e.tab.pivot(r, best, e.d)
		e.basis[r] = best
		e.state[best] = basic
		e.stats.Phase1Pivots++
	}

	for j, k := range e.kind {
		if k == artificial && e.state[j] != basic {
			e.fix(j)
			e.x[j] = 0
		}
	}
}

// phase2 在可行基上最小化按方向调整后的目标。
func (e *engine) phase2() error {
	e.phase = 2
	e.degen, e.bland = 0, false
	e.computeReducedCosts(e.cost2)

	if err := e.iterate(); err != nil {
		if errors.Is(err, errNoLimit) {
			return lp.ErrUnbounded
		}
		return err
	}
	return nil
}

var errNoLimit = errors.New("simplex: entering column has no limiting ratio")

// iterate 执行换基直到当前阶段最优。
func (e *engine) iterate() error {
	for {
		if e.stats.Iterations() >= e.limit {
			return errPivotLimit(e.limit, e.stats)
		}

		q, dir := e.price()
		if q < 0 {
			return nil
		}

		r, t, toUpper := e.ratio(q, dir)
		if math.IsInf(t, 1) {
			return errNoLimit
		}

		e.step(q, dir, r, t, toUpper)
	}
}

// computeReducedCosts 按 d = c - c_Bᵀ·T 重建约化成本行。
func (e *engine) computeReducedCosts(cost []float64) {
	copy(e.d, cost)
	for i := 0; i < e.m; i++ {
		cb := cost[e.basis[i]]
		if cb == 0 {
			continue
		}
		floats.AddScaled(e.d, -cb, e.tab.row(i)[:e.ncols])
	}
	for _, b := range e.basis {
		e.d[b] = 0
	}
}

// price 选出入基列与移动方向 (+1 增大, -1 减小)，无可改进列时返回 -1。
// 常规使用 Dantzig 规则 (最大 |d_j|，同值取最小下标)，
// 退化停滞时使用 Bland 规则 (第一个可改进列)。
func (e *engine) price() (int, int) {
	tol := e.opts.Tolerance
	best, bestDir, bestScore := -1, 0, 0.0

	for j := 0; j < e.ncols; j++ {
		if e.state[j] == basic || e.lo[j] == e.hi[j] {
			continue
		}

		dj := e.d[j]
		dir := 0
		switch e.state[j] {
		case atLower:
			if dj < -tol {
				dir = 1
			}
		case atUpper:
			if dj > tol {
				dir = -1
			}
		case atZero:
			if dj < -tol {
				dir = 1
			} else if dj > tol {
				dir = -1
			}
		}
		if dir == 0 {
			continue
		}

		if e.bland {
			return j, dir
		}
		if s := math.Abs(dj); s > bestScore {
			best, bestDir, bestScore = j, dir, s
		}
	}

	return best, bestDir
}

// ratio 有界比值检验。返回出基行 (-1 表示入基列翻转到另一侧界)、步长，
// 以及出基变量落在上界还是下界。步长为 +Inf 表示没有任何限制。
// 同长步长时界翻转优先，其次选基列下标最小的行。
func (e *engine) ratio(q, dir int) (int, float64, bool) {
	ptol := e.opts.PivotTolerance
	ttol := e.opts.Tolerance

	r, t, toUpper := -1, math.Inf(1), false
	if !math.IsInf(e.lo[q], -1) && !math.IsInf(e.hi[q], 1) {
		t = e.hi[q] - e.lo[q]
	}

	sign := float64(dir)
	for i := 0; i < e.m; i++ {
		alpha := sign * e.tab.at(i, q)
		if math.Abs(alpha) <= ptol {
			continue
		}

		b := e.basis[i]
		var ti float64
		var up bool
		if alpha > 0 {
			if math.IsInf(e.lo[b], -1) {
				continue
			}
			ti = (e.x[b] - e.lo[b]) / alpha
		} else {
			if math.IsInf(e.hi[b], 1) {
				continue
			}
			ti = (e.hi[b] - e.x[b]) / -alpha
			up = true
		}
		if ti < 0 {
			ti = 0
		}

		switch {
		case ti < t-ttol:
			r, t, toUpper = i, ti, up
		case r >= 0 && ti <= t+ttol && b < e.basis[r]:
			r, t, toUpper = i, math.Min(t, ti), up
		}
	}

	return r, t, toUpper
}

// step 沿入基列方向移动步长 t，并完成换基或界翻转。
func (e *engine) step(q, dir, r int, t float64, toUpper bool) {
	if t > 0 {
		delta := float64(dir) * t
		e.x[q] += delta
		for i := 0; i < e.m; i++ {
			if a := e.tab.at(i, q); a != 0 {
				e.x[e.basis[i]] -= delta * a
			}
		}
	}

	if t <= e.opts.Tolerance {
		e.stats.DegenerateSteps++
		e.degen++
		if !e.bland && e.degen >= e.opts.DegenerateLimit {
			e.bland = true
			e.stats.BlandActivations++
		}
	} else {
		e.degen = 0
		e.bland = false
	}

	if r < 0 {
		if dir > 0 {
			e.x[q], e.state[q] = e.hi[q], atUpper
		} else {
			e.x[q], e.state[q] = e.lo[q], atLower
		}
		e.stats.BoundFlips++
		return
	}

	leaving := e.basis[r]
	if toUpper {
		e.x[leaving], e.state[leaving] = e.hi[leaving], atUpper
	} else {
		e.x[leaving], e.state[leaving] = e.lo[leaving], atLower
	}
	if e.kind[leaving] == artificial {
		e.fix(leaving)
	}

	e.tab.pivot(r, q, e.d)
	e.basis[r] = q
	e.state[q] = basic

	if e.phase == 1 {
		e.stats.Phase1Pivots++
	} else {
		e.stats.Phase2Pivots++
	}
}

// fix 将人工列的界收紧为 [0,0]，使其不再入基。
func (e *engine) fix(j int) {
	e.lo[j], e.hi[j] = 0, 0
}

// refreshBasics 由 x_B = rhs - Σ_{j∉B} T[:,j]·x_j 重算基变量取值，消除累积误差。
func (e *engine) refreshBasics() {
	for i := 0; i < e.m; i++ {
		row := e.tab.row(i)
		v := row[e.ncols]
		for j := 0; j < e.ncols; j++ {
			if e.state[j] == basic {
				continue
			}
			if a, xj := row[j], e.x[j]; a != 0 && xj != 0 {
				v -= a * xj
			}
		}
		e.x[e.basis[i]] = v
	}
}
