package xerrors

var (
	// ErrBadRequest 请求体无法解码为求解请求。
	ErrBadRequest = New(ErrInvalidArg, 400101, "bad request", "request body is not a valid solve request", nil)
	// ErrBodyTooLarge 请求体超过大小上限。
	ErrBodyTooLarge = New(ErrInvalidArg, 400102, "request body too large", "reduce the problem size or raise server.max_body_bytes", nil)
	// ErrRateLimited 求解请求被限流。
	ErrRateLimited = New(ErrLimitExceeded, 429101, "too many requests", "solve rate limit exceeded", nil)
	// ErrRequestCanceled 调用方在求解开始前取消了请求。
	ErrRequestCanceled = New(ErrCanceled, 499101, "request canceled", "the caller canceled the solve request", nil)
	// ErrRequestTimeout 请求在求解开始前已超过截止时间。
	ErrRequestTimeout = New(ErrDeadlineExceeded, 504101, "request deadline exceeded", "the solve request deadline passed before the engine started", nil)
	// ErrPivotLimit 单纯形迭代次数超过上限。
	ErrPivotLimit = New(ErrInternal, 500101, "simplex pivot limit exceeded", "the engine failed to terminate within its iteration ceiling", nil)
	// ErrNumericalBreakdown 数值计算出现不应发生的状态。
	ErrNumericalBreakdown = New(ErrInternal, 500102, "numerical breakdown", "the engine reached a state that violates its own invariants", nil)
	// ErrVerification 求解结果未通过可行性复核。
	ErrVerification = New(ErrInternal, 500103, "solution verification failed", "the reported solution violates a constraint or bound", nil)
	// ErrCacheUnavailable 结果缓存不可用。
	ErrCacheUnavailable = New(ErrUnavailable, 503101, "cache unavailable", "the outcome cache backend is not reachable", nil)
)
