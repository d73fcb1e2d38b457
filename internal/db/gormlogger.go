package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"climate-server/internal/logging"
)

// gormLogger routes gorm's own logging to slog. Statement tracing is only
// enabled when the driver has no lower-level trace (the sqlite connector
// already logs every statement).
type gormLogger struct {
	logger   *slog.Logger
	level    gormlogger.LogLevel
	slow     time.Duration
	traceAll bool
}

func NewGormLogger(logger *slog.Logger, slow time.Duration, traceAll bool) gormlogger.Interface {
	if logger == nil {
		logger = slog.Default()
	}
	return &gormLogger{
		logger:   logger,
		level:    gormlogger.Info,
		slow:     slow,
		traceAll: traceAll,
	}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		l.from(ctx).InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		l.from(ctx).WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		l.from(ctx).ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	logger := l.from(ctx)

	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		query, rows := fc()
		logger.ErrorContext(ctx, "sql failed",
			"sql", query,
			"rows", rows,
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
		)
	case l.slow > 0 && elapsed > l.slow && l.level >= gormlogger.Warn:
		query, rows := fc()
		logger.WarnContext(ctx, "slow sql",
			"sql", query,
			"rows", rows,
			"duration_ms", elapsed.Milliseconds(),
			"threshold_ms", l.slow.Milliseconds(),
		)
	case l.traceAll && l.level >= gormlogger.Info:
		query, rows := fc()
		logger.DebugContext(ctx, "sql",
			"sql", query,
			"rows", rows,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
}

func (l *gormLogger) from(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, l.logger)
}
