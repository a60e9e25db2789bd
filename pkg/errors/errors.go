// Package errors 提供统一错误辅助，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 常用哨兵错误（可按需扩展错误码）
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidArg = errors.New("invalid argument")
)

// 筛选流水线错误分类：Worker 据此决定重试或终态
var (
	// ErrTransientInfra 队列/存储暂时不可达，可带 backoff 重试
	ErrTransientInfra = errors.New("transient infrastructure failure")
	// ErrRateLimited 推理模型限流，冷却后可重试（计入 attempt_count）
	ErrRateLimited = errors.New("rate limited")
	// ErrValidationFailure 输入文档/JD 不合法，终态，不重试
	ErrValidationFailure = errors.New("validation failure")
	// ErrIterationExhausted Critic 在 max_iterations 内未通过，终态；Verdict 以 unverified 标记产出
	ErrIterationExhausted = errors.New("iteration exhausted")
	// ErrProviderError 外部模型能力不可恢复错误，终态 Failed
	ErrProviderError = errors.New("provider error")
)

// New 透传标准库 errors.New
func New(msg string) error { return errors.New(msg) }

// Is 透传标准库 errors.Is
func Is(err, target error) bool { return errors.Is(err, target) }

// As 透传标准库 errors.As
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// IsRetryable 报告错误是否属于可重试类别（TransientInfra 或 RateLimited）
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientInfra) || errors.Is(err, ErrRateLimited)
}

// IsTerminal 报告错误是否必须直接进入终态（不含重试预算内的瞬时错误）
func IsTerminal(err error) bool {
	return errors.Is(err, ErrValidationFailure) || errors.Is(err, ErrProviderError)
}
