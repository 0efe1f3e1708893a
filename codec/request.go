// Package codec 负责求解请求与结果的线上 JSON 格式。
//
// 请求解码是全有或全无的：任何形状错误、缺失字段、非法取值或悬空变量下标
// 都以包装 lp.ErrMalformedInput 的错误返回，不会暴露部分翻译的问题。
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/wyfcoding/lpsolver/lp"
)

const (
	DirectionMinimize = "minimize"
	DirectionMaximize = "maximize"

	ComparisonEq = "eq"
	ComparisonLe = "le"
	ComparisonGe = "ge"
)

// Request 求解请求。
type Request struct {
	Direction   string                `json:"direction"`
	Variables   []VariableDeclaration `json:"variables"`
	Constraints []Constraint          `json:"constraints"`
}

// VariableDeclaration 变量声明，Minimum / Maximum 缺失表示该侧无界。
type VariableDeclaration struct {
	Minimum     *Bound  `json:"minimum,omitempty"`
	Maximum     *Bound  `json:"maximum,omitempty"`
	Coefficient float64 `json:"coefficient"`
}

// Constraint 线性约束。
type Constraint struct {
	Expression []Summand `json:"expression"`
	Comparison string    `json:"comparison"`
	Constant   float64   `json:"constant"`
}

// Summand 约束表达式中的一项。
type Summand struct {
	Variable    Index   `json:"variable"`
	Coefficient float64 `json:"coefficient"`
}

// 解码用的影子类型：必填字段全部为指针，以区分缺失与零值。
type (
	wireRequest struct {
		Direction   *string           `json:"direction"`
		Variables   *[]wireVariable   `json:"variables"`
		Constraints *[]wireConstraint `json:"constraints"`
	}
	wireVariable struct {
		Minimum     *Bound   `json:"minimum"`
		Maximum     *Bound   `json:"maximum"`
		Coefficient *float64 `json:"coefficient"`
	}
	wireConstraint struct {
		Expression *[]wireSummand `json:"expression"`
		Comparison *string        `json:"comparison"`
		Constant   *float64       `json:"constant"`
	}
	wireSummand struct {
		Variable    *Index   `json:"variable"`
		Coefficient *float64 `json:"coefficient"`
	}
)

func (w *wireRequest) UnmarshalJSON(data []byte) error {
	return decodeFields(data, []field{
		{"direction", &w.Direction},
		{"variables", &w.Variables},
		{"constraints", &w.Constraints},
	})
}

func (w *wireVariable) UnmarshalJSON(data []byte) error {
	return decodeFields(data, []field{
		{"minimum", &w.Minimum},
		{"maximum", &w.Maximum},
		{"coefficient", &w.Coefficient},
	})
}

func (w *wireConstraint) UnmarshalJSON(data []byte) error {
	return decodeFields(data, []field{
		{"expression", &w.Expression},
		{"comparison", &w.Comparison},
		{"constant", &w.Constant},
	})
}

func (w *wireSummand) UnmarshalJSON(data []byte) error {
	return decodeFields(data, []field{
		{"variable", &w.Variable},
		{"coefficient", &w.Coefficient},
	})
}

type field struct {
	name string
	dst  any
}

// decodeFields 按键名精确匹配对象字段。encoding/json 默认大小写不敏感，
// 这里 "Direction" 等键与其它未知键一样被忽略。
func decodeFields(data []byte, fields []field) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, f := range fields {
		msg, ok := raw[f.name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(msg, f.dst); err != nil {
			return fmt.Errorf("field %s: %w", f.name, err)
		}
	}
	return nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", lp.ErrMalformedInput, fmt.Sprintf(format, args...))
}

// Decode 将 JSON 请求翻译为经过校验的 lp.Problem。
func Decode(data []byte) (*lp.Problem, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	var w wireRequest
	if err := dec.Decode(&w); err != nil {
		return nil, malformed("decode request: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, malformed("unexpected data after request")
	}

	p, err := w.problem()
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// DecodeReader 从流中读取完整请求后解码。
func DecodeReader(r io.Reader) (*lp.Problem, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, malformed("read request: %v", err)
	}
	return Decode(data)
}

func (w *wireRequest) problem() (*lp.Problem, error) {
	if w.Direction == nil {
		return nil, malformed("missing field direction")
	}
	if w.Variables == nil {
		return nil, malformed("missing field variables")
	}
	if w.Constraints == nil {
		return nil, malformed("missing field constraints")
	}

	p := &lp.Problem{}
	switch *w.Direction {
	case DirectionMinimize:
		p.Direction = lp.Minimize
	case DirectionMaximize:
		p.Direction = lp.Maximize
	default:
		return nil, malformed("unknown direction %q", *w.Direction)
	}

	p.Variables = make([]lp.VariableDeclaration, 0, len(*w.Variables))
	for i, v := range *w.Variables {
		if v.Coefficient == nil {
			return nil, malformed("variables[%d]: missing field coefficient", i)
		}
		decl := lp.VariableDeclaration{
			Coefficient: *v.Coefficient,
			Lower:       math.Inf(-1),
			Upper:       math.Inf(1),
		}
		if v.Minimum != nil {
			decl.Lower = float64(*v.Minimum)
		}
		if v.Maximum != nil {
			decl.Upper = float64(*v.Maximum)
		}
		p.Variables = append(p.Variables, decl)
	}

	p.Constraints = make([]lp.Constraint, 0, len(*w.Constraints))
	for i, c := range *w.Constraints {
		con, err := c.constraint()
		if err != nil {
			return nil, malformed("constraints[%d]: %v", i, err)
		}
		p.Constraints = append(p.Constraints, con)
	}

	return p, nil
}

func (c *wireConstraint) constraint() (lp.Constraint, error) {
	var out lp.Constraint
	if c.Expression == nil {
		return out, errors.New("missing field expression")
	}
	if c.Comparison == nil {
		return out, errors.New("missing field comparison")
	}
	if c.Constant == nil {
		return out, errors.New("missing field constant")
	}

	switch *c.Comparison {
	case ComparisonEq:
		out.Comparison = lp.Eq
	case ComparisonLe:
		out.Comparison = lp.Le
	case ComparisonGe:
		out.Comparison = lp.Ge
	default:
		return out, fmt.Errorf("unknown comparison %q", *c.Comparison)
	}
	out.Constant = *c.Constant

	out.Expression = make([]lp.Summand, 0, len(*c.Expression))
	for k, s := range *c.Expression {
		if s.Variable == nil {
			return out, fmt.Errorf("expression[%d]: missing field variable", k)
		}
		if s.Coefficient == nil {
			return out, fmt.Errorf("expression[%d]: missing field coefficient", k)
		}
		out.Expression = append(out.Expression, lp.Summand{
			Variable:    lp.Variable(*s.Variable),
			Coefficient: *s.Coefficient,
		})
	}
	return out, nil
}

// Encode 将问题翻译回线上格式。无穷界省略，使编码结果规范唯一。
func Encode(p *lp.Problem) Request {
	req := Request{
		Direction:   p.Direction.String(),
		Variables:   make([]VariableDeclaration, len(p.Variables)),
		Constraints: make([]Constraint, len(p.Constraints)),
	}

	for i, v := range p.Variables {
		decl := VariableDeclaration{Coefficient: v.Coefficient}
		if !math.IsInf(v.Lower, -1) {
			lo := Bound(v.Lower)
			decl.Minimum = &lo
		}
		if !math.IsInf(v.Upper, 1) {
			hi := Bound(v.Upper)
			decl.Maximum = &hi
		}
		req.Variables[i] = decl
	}

	for i, c := range p.Constraints {
		con := Constraint{
			Expression: make([]Summand, len(c.Expression)),
			Comparison: c.Comparison.String(),
			Constant:   c.Constant,
		}
		for k, s := range c.Expression {
			con.Expression[k] = Summand{Variable: Index(s.Variable), Coefficient: s.Coefficient}
		}
		req.Constraints[i] = con
	}

	return req
}

// Marshal 是 Encode 后再做 JSON 编码的便捷函数。
func Marshal(p *lp.Problem) ([]byte, error) {
	return json.Marshal(Encode(p))
}
