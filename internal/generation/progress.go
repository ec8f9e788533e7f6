package generation

import (
	"context"

	"github.com/francis150/tmpltr/internal/logger"

	"go.uber.org/zap"
)

// ProgressReporter 任务进度回调，progress 取值 0..1
type ProgressReporter interface {
	Report(ctx context.Context, jobID string, progress float64, message string)
}

// NopReporter 丢弃进度的空实现
type NopReporter struct{}

func (NopReporter) Report(ctx context.Context, jobID string, progress float64, message string) {}

// LogReporter 把进度写入日志
// 进度钳制到 0..1 且只增不减：乱序到达的旧进度保持在已见过的最大值
type LogReporter struct {
	seen map[string]float64
}

// NewLogReporter 创建 LogReporter 实例
func NewLogReporter() *LogReporter {
	return &LogReporter{seen: make(map[string]float64)}
}

func (r *LogReporter) Report(ctx context.Context, jobID string, progress float64, message string) {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	if prev, ok := r.seen[jobID]; ok && progress < prev {
		progress = prev
	}
	r.seen[jobID] = progress

	logger.WithContext(ctx).Info("生成进度",
		zap.String("jobId", jobID),
		zap.Float64("progress", progress),
		zap.String("message", message),
	)
}
