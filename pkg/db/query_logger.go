package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/horologe/storefront-backend/pkg/logger"
)

// queryLogger sends GORM's own messages through the service logger. Only
// slow statements and real failures are reported; missing rows are normal.
type queryLogger struct {
	logg *logger.Logger
	slow time.Duration
}

func newQueryLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	return &queryLogger{logg: logg, slow: slow}
}

func (l *queryLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return l }

func (l *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	l.logg.Debug(ctx, fmt.Sprintf(msg, args...))
}

func (l *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.logg.Warn(ctx, fmt.Sprintf(msg, args...))
}

func (l *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	l.logg.Error(ctx, fmt.Sprintf(msg, args...), nil)
}

func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && !IsUniqueViolation(err, "")
	slow := l.slow > 0 && elapsed > l.slow
	if !failed && !slow {
		return
	}
	sql, rows := fc()
	logCtx := l.logg.WithFields(ctx, map[string]any{
		"sql":         sql,
		"rows":        rows,
		"duration_ms": elapsed.Milliseconds(),
	})
	if failed {
		l.logg.Error(logCtx, "query failed", err)
		return
	}
	l.logg.Warn(logCtx, "slow query")
}
