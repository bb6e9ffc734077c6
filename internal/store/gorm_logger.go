package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"atsforge/internal/errors"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// gormSlogLogger routes gorm's query log through the application logger
type gormSlogLogger struct {
	logger        *errors.Logger
	slowThreshold time.Duration
	logLevel      gormlogger.LogLevel
}

func newGormLogger(logger *errors.Logger, debug bool) gormlogger.Interface {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return &gormSlogLogger{
		logger:        logger,
		slowThreshold: slowQueryThreshold,
		logLevel:      level,
	}
}

func (l *gormSlogLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

func (l *gormSlogLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= gormlogger.Info {
		l.logger.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *gormSlogLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= gormlogger.Warn {
		l.logger.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *gormSlogLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= gormlogger.Error {
		l.logger.LogError(fmt.Errorf(msg, data...), "Database error")
	}
}

func (l *gormSlogLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound):
		if l.logLevel >= gormlogger.Error {
			l.logger.LogError(err, "Query failed",
				"elapsed", elapsed.String(),
				"rows", rows,
				"sql", sql)
		}
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		if l.logLevel >= gormlogger.Warn {
			l.logger.Warn("Slow query",
				"elapsed", elapsed.String(),
				"rows", rows,
				"sql", sql,
				"threshold", l.slowThreshold.String())
		}
	default:
		if l.logLevel >= gormlogger.Info {
			l.logger.Debug("Query",
				"elapsed", elapsed.String(),
				"rows", rows,
				"sql", sql)
		}
	}
}
