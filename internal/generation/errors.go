package generation

import (
	"errors"
	"fmt"
)

// 前置校验错误（进入生成流程之前就能判定的失败）
var (
	// ErrNotAuthenticated 未携带可透传给生成服务的凭证
	ErrNotAuthenticated = errors.New("未登录，请先登录")
	// ErrNoPrompts 模板没有配置任何提示词
	ErrNoPrompts = errors.New("模板未配置提示词")
	// ErrJobActive 客户端已有进行中的任务
	ErrJobActive = errors.New("已有生成任务进行中")
)

// ConnectionError 无法连到生成服务，或任务进行中连接意外断开
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("连接生成服务失败: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// GenerationError 生成服务明确报告的任务失败，Message 来自服务端
type GenerationError struct {
	Message string
}

func (e *GenerationError) Error() string {
	if e.Message == "" {
		return "生成任务失败"
	}
	return fmt.Sprintf("生成任务失败: %s", e.Message)
}

// PersistenceError 生成成功但落库失败，结果未保存
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("生成结果保存失败: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// 指标的结果标签
const (
	OutcomeCompleted        = "completed"
	OutcomeValidationFailed = "validation_failed"
	OutcomeConnectionFailed = "connection_failed"
	OutcomeGenerationFailed = "generation_failed"
	OutcomePersistFailed    = "persistence_failed"
)

// classifyOutcome 把错误映射到指标结果标签
func classifyOutcome(err error) string {
	if err == nil {
		return OutcomeCompleted
	}
	var connErr *ConnectionError
	var genErr *GenerationError
	var persistErr *PersistenceError
	switch {
	case errors.As(err, &connErr):
		return OutcomeConnectionFailed
	case errors.As(err, &genErr):
		return OutcomeGenerationFailed
	case errors.As(err, &persistErr):
		return OutcomePersistFailed
	default:
		return OutcomeValidationFailed
	}
}
