package lp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProblemBuilder(t *testing.T) {
	p := NewProblem(Maximize)
	x := p.AddVar(2, 0, 4)
	y := p.AddVar(3, 0, 4)
	expr := []Summand{{Variable: x, Coefficient: 1}, {Variable: y, Coefficient: 1}}
	p.AddConstraint(expr, Le, 4)

	// 构建器必须复制表达式，后续修改不影响已添加的约束。
	expr[0].Coefficient = 99

	assert.Equal(t, Variable(0), x)
	assert.Equal(t, Variable(1), y)
	assert.Equal(t, 2, p.NumVars())
	assert.Equal(t, 1, p.NumConstraints())
	assert.Equal(t, 1.0, p.Constraints[0].Expression[0].Coefficient)
	require.NoError(t, p.Validate())
}

func TestValidateRejectsStructuralErrors(t *testing.T) {
	inf := math.Inf(1)

	cases := []struct {
		name    string
		problem *Problem
	}{
		{"nil problem", nil},
		{"unknown direction", &Problem{Direction: Direction(7)}},
		{"lower above upper", &Problem{Variables: []VariableDeclaration{{Lower: 3, Upper: 1}}}},
		{"nan coefficient", &Problem{Variables: []VariableDeclaration{{Coefficient: math.NaN(), Upper: inf}}}},
		{"infinite coefficient", &Problem{Variables: []VariableDeclaration{{Coefficient: inf, Upper: inf}}}},
		{"lower bound +inf", &Problem{Variables: []VariableDeclaration{{Lower: inf, Upper: inf}}}},
		{"upper bound -inf", &Problem{Variables: []VariableDeclaration{{Lower: -inf, Upper: -inf}}}},
		{"nan bound", &Problem{Variables: []VariableDeclaration{{Lower: math.NaN(), Upper: 1}}}},
		{
			"variable index out of range",
			&Problem{
				Variables:   []VariableDeclaration{{Upper: inf}, {Upper: inf}},
				Constraints: []Constraint{{Expression: []Summand{{Variable: 5, Coefficient: 1}}, Comparison: Le, Constant: 1}},
			},
		},
		{
			"negative variable index",
			&Problem{
				Variables:   []VariableDeclaration{{Upper: inf}},
				Constraints: []Constraint{{Expression: []Summand{{Variable: -1, Coefficient: 1}}, Comparison: Le}},
			},
		},
		{
			"unknown comparison",
			&Problem{Constraints: []Constraint{{Comparison: ComparisonOp(9)}}},
		},
		{
			"infinite constant",
			&Problem{Constraints: []Constraint{{Comparison: Le, Constant: inf}}},
		},
		{
			"nan summand coefficient",
			&Problem{
				Variables:   []VariableDeclaration{{Upper: inf}},
				Constraints: []Constraint{{Expression: []Summand{{Variable: 0, Coefficient: math.NaN()}}, Comparison: Eq}},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.problem.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedInput)
			kind, ok := KindOf(err)
			assert.True(t, ok)
			assert.Equal(t, FailureBadFormat, kind)
		})
	}
}

func TestValidateAcceptsEdgeValues(t *testing.T) {
	lo, hi := Unbounded()
	p := NewProblem(Minimize)
	x := p.AddVar(0, lo, hi)
	z := p.AddVar(-1, 2, 2) // 固定变量
	p.AddConstraint([]Summand{{x, 1}, {x, 0}, {z, 1}}, Ge, -3)
	p.AddConstraint(nil, Le, 0)

	assert.NoError(t, p.Validate())
}

func TestEvaluateAndCheckFeasible(t *testing.T) {
	p := NewProblem(Maximize)
	lo, hi := NonNegative()
	x := p.AddVar(2, lo, hi)
	y := p.AddVar(3, lo, 4)
	p.AddConstraint([]Summand{{x, 1}, {y, 1}, {x, 1}}, Le, 6)
	p.AddConstraint([]Summand{{y, 1}}, Eq, 2)

	values := []float64{2, 2}
	assert.InDelta(t, 10.0, p.Evaluate(values), 1e-12)
	assert.InDelta(t, 6.0, p.Activity(0, values), 1e-12)
	assert.NoError(t, p.CheckFeasible(values, 1e-9))

	assert.Error(t, p.CheckFeasible([]float64{3, 2}, 1e-9), "duplicate summands push activity to 8 > 6")
	assert.Error(t, p.CheckFeasible([]float64{0, 3}, 1e-9), "equality violated")
	assert.Error(t, p.CheckFeasible([]float64{-1, 2}, 1e-9), "lower bound violated")
	assert.Error(t, p.CheckFeasible([]float64{0}, 1e-9), "length mismatch")
}

func TestSolutionValue(t *testing.T) {
	s := Solution{Objective: 1, Values: []float64{7, 8}}
	assert.Equal(t, 8.0, s.Value(1))
	assert.Equal(t, 0.0, s.Value(2))
	assert.Equal(t, 0.0, s.Value(-1))
}

func TestKindOf(t *testing.T) {
	k, ok := KindOf(ErrInfeasible)
	assert.True(t, ok)
	assert.Equal(t, FailureInfeasible, k)

	k, ok = KindOf(ErrUnbounded)
	assert.True(t, ok)
	assert.Equal(t, FailureUnbounded, k)

	_, ok = KindOf(nil)
	assert.False(t, ok)

	_, ok = KindOf(assert.AnError)
	assert.False(t, ok)
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "minimize", Minimize.String())
	assert.Equal(t, "maximize", Maximize.String())
	assert.Equal(t, "le", Le.String())
	assert.Equal(t, "ge", Ge.String())
	assert.Equal(t, "eq", Eq.String())
	assert.Equal(t, "Direction(5)", Direction(5).String())
}
