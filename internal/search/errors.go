package search

import (
	"fmt"
	"strings"
)

// ValidationError 请求参数不合法
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UnknownEngineError 请求了未注册的搜索引擎
type UnknownEngineError struct {
	Engine    string
	Available []string
}

func (e *UnknownEngineError) Error() string {
	return fmt.Sprintf("unknown engine %q, available engines: %s", e.Engine, strings.Join(e.Available, ", "))
}
