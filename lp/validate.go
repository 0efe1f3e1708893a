package lp

import (
	"fmt"
	"math"
)

// Validate 检查问题的结构合法性，任何违规都会包装 ErrMalformedInput 返回。
// 校验规则：
//  1. 方向与比较运算符必须为已知取值；
//  2. 所有数值不得为 NaN，目标系数、项系数与右端常数必须有限；
//  3. 下界不得为 +∞、上界不得为 -∞，且同时存在时 lower ≤ upper；
//  4. 每个项引用的变量下标必须落在 [0, len(Variables)) 内。
func (p *Problem) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil problem", ErrMalformedInput)
	}

	switch p.Direction {
	case Minimize, Maximize:
	default:
		return fmt.Errorf("%w: unknown direction %d", ErrMalformedInput, int(p.Direction))
	}

	for i, v := range p.Variables {
		if err := validateVariable(v); err != nil {
			return fmt.Errorf("%w: variables[%d]: %s", ErrMalformedInput, i, err)
		}
	}

	n := len(p.Variables)
	for i, c := range p.Constraints {
		if err := validateConstraint(c, n); err != nil {
			return fmt.Errorf("%w: constraints[%d]: %s", ErrMalformedInput, i, err)
		}
	}

	return nil
}

type violation string

func (v violation) Error() string { return string(v) }

func validateVariable(v VariableDeclaration) error {
	if !isFinite(v.Coefficient) {
		return violation(fmt.Sprintf("coefficient %v is not finite", v.Coefficient))
	}
	if math.IsNaN(v.Lower) || math.IsInf(v.Lower, 1) {
		return violation(fmt.Sprintf("invalid lower bound %v", v.Lower))
	}
	if math.IsNaN(v.Upper) || math.IsInf(v.Upper, -1) {
		return violation(fmt.Sprintf("invalid upper bound %v", v.Upper))
	}
	if v.Lower > v.Upper {
		return violation(fmt.Sprintf("lower bound %v exceeds upper bound %v", v.Lower, v.Upper))
	}
	return nil
}

func validateConstraint(c Constraint, n int) error {
	switch c.Comparison {
	case Eq, Le, Ge:
	default:
		return violation(fmt.Sprintf("unknown comparison %d", int(c.Comparison)))
	}
	if !isFinite(c.Constant) {
		return violation(fmt.Sprintf("constant %v is not finite", c.Constant))
	}
	for k, s := range c.Expression {
		if s.Variable < 0 || int(s.Variable) >= n {
			return violation(fmt.Sprintf("expression[%d]: variable %d out of range [0, %d)", k, s.Variable, n))
		}
		if !isFinite(s.Coefficient) {
			return violation(fmt.Sprintf("expression[%d]: coefficient %v is not finite", k, s.Coefficient))
		}
	}
	return nil
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
