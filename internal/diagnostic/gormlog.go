package diagnostic

import (
	"context"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"hushtab/internal/logger"
)

// GormLogger 把 gorm 的日志桥接到统一日志接口
type GormLogger struct {
	logger.Logger
	LogLevel gormlogger.LogLevel
}

// NewGormLogger 创建 GormLogger 实例，诊断库默认只记告警以上
func NewGormLogger(l logger.Logger) *GormLogger {
	return &GormLogger{Logger: l, LogLevel: gormlogger.Warn}
}

// LogMode 设置日志级别
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	nl := *l
	nl.LogLevel = level
	return &nl
}

// Info 打印 info 级别日志
func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Info {
		l.Logger.Info(msg, "data", data)
	}
}

// Warn 打印 warn 级别日志
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Warn {
		l.Logger.Warn(msg, "data", data)
	}
}

// Error 打印 error 级别日志
func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Error {
		l.Logger.Warn(msg, "data", data)
	}
}

// Trace 打印 SQL 日志
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	switch {
	case err != nil && l.LogLevel >= gormlogger.Error:
		l.Logger.Err(err, "SQL执行错误", "sql", sql, "rows", rows)
	case elapsed > time.Second && l.LogLevel >= gormlogger.Warn:
		l.Logger.Warn("慢SQL查询", "sql", sql, "rows", rows, "timeMs", float64(elapsed.Nanoseconds())/1e6)
	case l.LogLevel >= gormlogger.Info:
		l.Logger.Debug("SQL执行", "sql", sql, "rows", rows)
	}
}
