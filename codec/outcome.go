package codec

import (
	"encoding/json"
	"fmt"

	"github.com/wyfcoding/lpsolver/lp"
)

// OutcomeType 结果标签。
type OutcomeType string

const (
	OutcomeSuccess OutcomeType = "success"
	OutcomeError   OutcomeType = "error"
)

// Outcome 求解结果的标签联合：成功时携带 Solution，失败时携带失败种类。
//
//	{"type":"success","value":{"objective":12,"values":[0,4]}}
//	{"type":"error","value":"infeasible"}
type Outcome struct {
	Type     OutcomeType
	Solution lp.Solution
	Failure  lp.FailureKind
}

// Success 构造成功结果。
func Success(sol lp.Solution) Outcome {
	if sol.Values == nil {
		sol.Values = []float64{}
	}
	return Outcome{Type: OutcomeSuccess, Solution: sol}
}

// Failure 构造失败结果。
func Failure(kind lp.FailureKind) Outcome {
	return Outcome{Type: OutcomeError, Failure: kind}
}

// FromError 将模型化失败转换为结果；其它错误 (内部缺陷) 返回 false。
func FromError(err error) (Outcome, bool) {
	kind, ok := lp.KindOf(err)
	if !ok {
		return Outcome{}, false
	}
	return Failure(kind), true
}

// Kind 返回 "success" 或失败种类，用于指标与日志标签。
func (o Outcome) Kind() string {
	if o.Type == OutcomeSuccess {
		return string(OutcomeSuccess)
	}
	return string(o.Failure)
}

// IsSuccess 是否为成功结果。
func (o Outcome) IsSuccess() bool {
	return o.Type == OutcomeSuccess
}

type wireSolution struct {
	Objective float64   `json:"objective"`
	Values    []float64 `json:"values"`
}

type wireOutcome struct {
	Type  OutcomeType     `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON 实现 json.Marshaler。
func (o Outcome) MarshalJSON() ([]byte, error) {
	var value any
	switch o.Type {
	case OutcomeSuccess:
		values := o.Solution.Values
		if values == nil {
			values = []float64{}
		}
		value = wireSolution{Objective: o.Solution.Objective, Values: values}
	case OutcomeError:
		switch o.Failure {
		case lp.FailureInfeasible, lp.FailureUnbounded, lp.FailureBadFormat:
		default:
			return nil, fmt.Errorf("codec: unknown failure kind %q", o.Failure)
		}
		value = o.Failure
	default:
		return nil, fmt.Errorf("codec: unknown outcome type %q", o.Type)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireOutcome{Type: o.Type, Value: raw})
}

// UnmarshalJSON 实现 json.Unmarshaler。
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var w wireOutcome
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	switch w.Type {
	case OutcomeSuccess:
		var sol wireSolution
		if err := json.Unmarshal(w.Value, &sol); err != nil {
			return fmt.Errorf("codec: success value: %w", err)
		}
		*o = Success(lp.Solution{Objective: sol.Objective, Values: sol.Values})
	case OutcomeError:
		var kind lp.FailureKind
		if err := json.Unmarshal(w.Value, &kind); err != nil {
			return fmt.Errorf("codec: error value: %w", err)
		}
		switch kind {
		case lp.FailureInfeasible, lp.FailureUnbounded, lp.FailureBadFormat:
		default:
			return fmt.Errorf("codec: unknown failure kind %q", kind)
		}
		*o = Failure(kind)
	default:
		return fmt.Errorf("codec: unknown outcome type %q", w.Type)
	}
	return nil
}
