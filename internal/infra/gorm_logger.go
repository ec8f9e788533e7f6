package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/francis150/tmpltr/internal/logger"

	"go.uber.org/zap"
	gormLogger "gorm.io/gorm/logger"
)

// 页面正文和构建器元数据会以大段 HTML/JSON 进 SQL，日志里截断避免刷屏
const maxLoggedSQLLength = 600

// GormZapLogger GORM 日志适配器
// 通过 logger.WithContext 输出，SQL 日志自动带上请求的 trace ID
type GormZapLogger struct {
	LogLevel                  gormLogger.LogLevel
	SlowThreshold             time.Duration
	IgnoreRecordNotFoundError bool
}

// LogMode 设置日志级别
func (l *GormZapLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	clone := *l
	clone.LogLevel = level
	return &clone
}

func (l *GormZapLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Info {
		logger.WithContext(ctx).Info(fmt.Sprintf(msg, data...))
	}
}

func (l *GormZapLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Warn {
		logger.WithContext(ctx).Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *GormZapLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Error {
		logger.WithContext(ctx).Error(fmt.Sprintf(msg, data...))
	}
}

// Trace SQL 执行日志
func (l *GormZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormLogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", truncateSQL(sql)),
		zap.Int64("rows", rows),
	}
	log := logger.WithContext(ctx)

	switch {
	case err != nil && (!l.IgnoreRecordNotFoundError || !errors.Is(err, gormLogger.ErrRecordNotFound)):
		log.Error("查询执行失败", append(fields, zap.Error(err))...)
	case l.SlowThreshold > 0 && elapsed > l.SlowThreshold:
		log.Warn("慢查询", fields...)
	case l.LogLevel >= gormLogger.Info:
		log.Debug("查询跟踪", fields...)
	}
}

func truncateSQL(sql string) string {
	if len(sql) <= maxLoggedSQLLength {
		return sql
	}
	return sql[:maxLoggedSQLLength] + "...(已截断)"
}
