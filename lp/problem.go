// Package lp 定义了线性规划问题的规范内存模型：决策变量、线性约束、优化方向与求解结果。
// 变量以声明顺序中的下标作为句柄，模型由调用方一次构建，求解引擎只读借用。
package lp

import (
	"fmt"
	"math"
)

// Direction 优化方向。
type Direction int

const (
	Minimize Direction = iota // 最小化目标函数。
	Maximize                  // 最大化目标函数。
)

// String 返回方向的线上名称。
func (d Direction) String() string {
	switch d {
	case Minimize:
		return "minimize"
	case Maximize:
		return "maximize"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ComparisonOp 约束比较运算符。
type ComparisonOp int

const (
	Eq ComparisonOp = iota // 等式约束 (=)。
	Le                     // 小于等于约束 (≤)。
	Ge                     // 大于等于约束 (≥)。
)

// String 返回运算符的线上名称。
func (op ComparisonOp) String() string {
	switch op {
	case Eq:
		return "eq"
	case Le:
		return "le"
	case Ge:
		return "ge"
	default:
		return fmt.Sprintf("ComparisonOp(%d)", int(op))
	}
}

// Variable 是单个问题实例内决策变量的句柄，即其在声明列表中的下标。
// 句柄仅在一次求解调用内有效，不可跨问题复用。
type Variable int

// VariableDeclaration 描述一个决策变量。
// Lower 为 math.Inf(-1) 表示无下界，Upper 为 math.Inf(1) 表示无上界。
type VariableDeclaration struct {
	Coefficient float64 // 目标函数系数，可以为零或负数。
	Lower       float64 // 下界。
	Upper       float64 // 上界。
}

// Summand 线性表达式中的一项 (变量, 系数)。
type Summand struct {
	Variable    Variable
	Coefficient float64
}

// Constraint 线性约束：Σ Expression  Comparison  Constant。
// 同一变量可以在表达式中重复出现，其系数会被累加。
type Constraint struct {
	Expression []Summand
	Comparison ComparisonOp
	Constant   float64
}

// Problem 线性规划问题。
type Problem struct {
	Direction   Direction
	Variables   []VariableDeclaration
	Constraints []Constraint
}

// NewProblem 创建一个指定优化方向的空问题。
func NewProblem(direction Direction) *Problem {
	return &Problem{Direction: direction}
}

// AddVar 声明一个新变量并返回其句柄。
// 传入 math.Inf(-1) / math.Inf(1) 表示对应方向无界。
func (p *Problem) AddVar(coefficient, lower, upper float64) Variable {
	p.Variables = append(p.Variables, VariableDeclaration{
		Coefficient: coefficient,
		Lower:       lower,
		Upper:       upper,
	})
	return Variable(len(p.Variables) - 1)
}

// AddConstraint 追加一条线性约束。表达式切片会被复制，调用方可继续复用。
func (p *Problem) AddConstraint(expr []Summand, cmp ComparisonOp, constant float64) {
	p.Constraints = append(p.Constraints, Constraint{
		Expression: append([]Summand(nil), expr...),
		Comparison: cmp,
		Constant:   constant,
	})
}

// NumVars 返回声明的变量个数。
func (p *Problem) NumVars() int {
	return len(p.Variables)
}

// NumConstraints 返回约束个数。
func (p *Problem) NumConstraints() int {
	return len(p.Constraints)
}

// Unbounded 返回无界标记值，便于声明变量时书写。
func Unbounded() (lower, upper float64) {
	return math.Inf(-1), math.Inf(1)
}

// NonNegative 返回 [0, +∞) 的界。
func NonNegative() (lower, upper float64) {
	return 0, math.Inf(1)
}

// Solution 一次求解得到的最优解。
type Solution struct {
	Objective float64   // 目标函数在最优点的取值 (按原始方向)。
	Values    []float64 // 按声明顺序排列的变量取值。
}

// Value 返回变量 v 在解中的取值；句柄越界时返回 0。
func (s Solution) Value(v Variable) float64 {
	if v < 0 || int(v) >= len(s.Values) {
		return 0
	}
	return s.Values[v]
}
