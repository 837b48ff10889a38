package db

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/dukapay-backend/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// gormLogger routes GORM's trace output into the service logger. Only failed
// statements and statements slower than the threshold are logged; record not
// found is a normal lookup outcome and stays quiet.
type gormLogger struct {
	logg *logger.Logger
	slow time.Duration
}

func newGormLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	return &gormLogger{logg: logg, slow: slow}
}

func (g *gormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return g
}

func (g *gormLogger) Info(ctx context.Context, msg string, _ ...any) {
	g.logg.Debug(ctx, msg)
}

func (g *gormLogger) Warn(ctx context.Context, msg string, _ ...any) {
	g.logg.Warn(ctx, msg)
}

func (g *gormLogger) Error(ctx context.Context, msg string, _ ...any) {
	g.logg.Error(ctx, msg, nil)
}

// ParamsFilter drops bound values from logged SQL; they carry phone numbers
// and provider references.
func (g *gormLogger) ParamsFilter(_ context.Context, sql string, _ ...any) (string, []any) {
	return sql, nil
}

func (g *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := g.slow > 0 && elapsed > g.slow
	if !failed && !slow {
		return
	}

	sql, rows := fc()
	ctx = g.logg.WithFields(ctx, map[string]any{
		"sql":        sql,
		"rows":       rows,
		"elapsed_ms": elapsed.Milliseconds(),
	})
	if failed {
		g.logg.Error(ctx, "sql statement failed", err)
		return
	}
	g.logg.Warn(ctx, "slow sql statement")
}
