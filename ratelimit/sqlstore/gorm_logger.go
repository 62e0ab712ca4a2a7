/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/acronis/go-quotakit/log"
)

// gormLogger routes gorm messages to log.FieldLogger.
// Queries are logged at debug level, failed and slow queries at error and warn levels.
type gormLogger struct {
	logger        log.FieldLogger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func newGormLogger(logger log.FieldLogger, slowThreshold time.Duration) *gormLogger {
	return &gormLogger{logger: logger, level: gormlogger.Warn, slowThreshold: slowThreshold}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.logger.Info(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.logger.Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.logger.Error(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		sql, rows := fc()
		l.logger.Error("sql query failed",
			log.String("sql", sql), log.Int64("rows", rows), log.DurationIn(elapsed, time.Millisecond), log.Error(err))
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.logger.Warn("slow sql query",
			log.String("sql", sql), log.Int64("rows", rows), log.DurationIn(elapsed, time.Millisecond))
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.logger.Debug("sql query", log.String("sql", sql), log.Int64("rows", rows), log.DurationIn(elapsed, time.Millisecond))
	}
}
