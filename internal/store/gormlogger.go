package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm/logger"
)

// gormLogger adapts zerolog to the gorm logger interface so store queries
// share the process log stream.
type gormLogger struct {
	log   zerolog.Logger
	level logger.LogLevel
}

func newGormLogger(log zerolog.Logger) *gormLogger {
	return &gormLogger{log: log, level: logger.Warn}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		l.log.Info().Interface("data", data).Msg(msg)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		l.log.Warn().Interface("data", data).Msg(msg)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		l.log.Error().Interface("data", data).Msg(msg)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	switch {
	case err != nil && l.level >= logger.Error:
		l.log.Error().Err(err).Str("sql", sql).Int64("rows", rows).Msg("query failed")
	case elapsed > time.Second && l.level >= logger.Warn:
		l.log.Warn().Dur("elapsed", elapsed).Str("sql", sql).Msg("slow query")
	}
}
