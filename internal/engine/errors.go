package engine

import "fmt"

// UpstreamError 上游调用失败：传输错误、超时或响应无法解析。
// 携带出错的引擎名与具体操作，调用方据此映射传输层状态。
type UpstreamError struct {
	Engine string
	Op     string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s %s search failed: %v", e.Engine, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ParseError 上游响应结构不符合预期，例如缺少必需的会话令牌。
// 总是包在 UpstreamError 里返回。
type ParseError struct {
	Engine string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: unexpected response structure: %s", e.Engine, e.Reason)
}

func upstreamErr(engineName, op string, err error) error {
	return &UpstreamError{Engine: engineName, Op: op, Err: err}
}
