package lp

import "errors"

var (
	// ErrInfeasible 不存在同时满足全部约束与变量界的取值。
	ErrInfeasible = errors.New("lp: problem is infeasible")
	// ErrUnbounded 目标函数在可行域内可以无限改进。
	ErrUnbounded = errors.New("lp: problem is unbounded")
	// ErrMalformedInput 请求无法转换为合法的问题模型，在求解前检出。
	ErrMalformedInput = errors.New("lp: malformed input")
)

// FailureKind 模型化失败的种类。
type FailureKind string

const (
	FailureInfeasible FailureKind = "infeasible"
	FailureUnbounded  FailureKind = "unbounded"
	FailureBadFormat  FailureKind = "bad_format"
)

// KindOf 将错误归类为三种模型化失败之一。
// 其它错误 (引擎内部缺陷等) 返回 false。
func KindOf(err error) (FailureKind, bool) {
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, ErrInfeasible):
		return FailureInfeasible, true
	case errors.Is(err, ErrUnbounded):
		return FailureUnbounded, true
	case errors.Is(err, ErrMalformedInput):
		return FailureBadFormat, true
	default:
		return "", false
	}
}
