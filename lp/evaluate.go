package lp

import (
	"fmt"
	"math"
)

// Evaluate 在给定取值处计算原始目标函数 Σ c_j x_j。
func (p *Problem) Evaluate(values []float64) float64 {
	var sum float64
	for j, v := range p.Variables {
		if j < len(values) {
			sum += v.Coefficient * values[j]
		}
	}
	return sum
}

// Activity 在给定取值处计算第 i 条约束的左端值，重复变量的系数按出现次数累加。
func (p *Problem) Activity(i int, values []float64) float64 {
	var sum float64
	for _, s := range p.Constraints[i].Expression {
		sum += s.Coefficient * values[s.Variable]
	}
	return sum
}

// CheckFeasible 校验取值满足全部变量界与约束，容差按 tol·max(1, |rhs|) 放缩。
// 返回的错误描述第一个被违反的条件。
func (p *Problem) CheckFeasible(values []float64, tol float64) error {
	if len(values) != len(p.Variables) {
		return fmt.Errorf("lp: got %d values for %d variables", len(values), len(p.Variables))
	}

	for j, v := range p.Variables {
		x := values[j]
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("lp: variables[%d] value %v is not finite", j, x)
		}
		if x < v.Lower-tol*math.Max(1, math.Abs(v.Lower)) {
			return fmt.Errorf("lp: variables[%d] value %v below lower bound %v", j, x, v.Lower)
		}
		if x > v.Upper+tol*math.Max(1, math.Abs(v.Upper)) {
			return fmt.Errorf("lp: variables[%d] value %v above upper bound %v", j, x, v.Upper)
		}
	}

	for i, c := range p.Constraints {
		lhs := p.Activity(i, values)
		slack := tol * math.Max(1, math.Abs(c.Constant))
		switch c.Comparison {
		case Le:
			if lhs > c.Constant+slack {
				return fmt.Errorf("lp: constraints[%d] %v > %v", i, lhs, c.Constant)
			}
		case Ge:
			if lhs < c.Constant-slack {
				return fmt.Errorf("lp: constraints[%d] %v < %v", i, lhs, c.Constant)
			}
		case Eq:
			if math.Abs(lhs-c.Constant) > slack {
				return fmt.Errorf("lp: constraints[%d] %v != %v", i, lhs, c.Constant)
			}
		}
	}

	return nil
}
