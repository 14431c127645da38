package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// gormSlog sends GORM's output through slog so SQL errors carry the
// request, user and trace ids. Missing rows are not errors here.
type gormSlog struct {
	log   *slog.Logger
	level logger.LogLevel
	slow  time.Duration
}

func newGormSlog(l *slog.Logger) *gormSlog {
	return &gormSlog{log: l, level: logger.Warn, slow: 200 * time.Millisecond}
}

func (g *gormSlog) LogMode(level logger.LogLevel) logger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *gormSlog) printf(ctx context.Context, at logger.LogLevel, sl slog.Level, msg string, args []any) {
	if g.level >= at {
		g.log.Log(ctx, sl, fmt.Sprintf(msg, args...))
	}
}

func (g *gormSlog) Info(ctx context.Context, msg string, args ...any) {
	g.printf(ctx, logger.Info, slog.LevelInfo, msg, args)
}

func (g *gormSlog) Warn(ctx context.Context, msg string, args ...any) {
	g.printf(ctx, logger.Warn, slog.LevelWarn, msg, args)
}

func (g *gormSlog) Error(ctx context.Context, msg string, args ...any) {
	g.printf(ctx, logger.Error, slog.LevelError, msg, args)
}

func (g *gormSlog) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var (
		lvl slog.Level
		msg string
	)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= logger.Error:
		lvl, msg = slog.LevelError, "sql error"
	case g.slow > 0 && elapsed > g.slow && g.level >= logger.Warn:
		lvl, msg = slog.LevelWarn, "slow sql"
	case g.level >= logger.Info:
		lvl, msg = slog.LevelInfo, "sql"
	default:
		return
	}

	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}
	if err != nil && lvl == slog.LevelError {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	g.log.LogAttrs(ctx, lvl, msg, attrs...)
}
