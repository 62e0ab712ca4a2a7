/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package log provides the structured logger used by all quotakit components.
//
// Components accept the FieldLogger interface; a nil logger is replaced with NewDisabledLogger().
package log

import (
	"fmt"
	"os"
	"time"

	"github.com/ssgreg/logf"
)

// Field is a typed key-value pair attached to a log entry.
type Field = logf.Field

// CloseFunc flushes and stops the asynchronous writer created by NewLogger.
type CloseFunc logf.ChannelWriterCloseFunc

// LogFunc logs a message at the level bound by FieldLogger.AtLevel.
// nolint: revive
type LogFunc = logf.LogFunc

// Field constructors.
var (
	Error    = logf.Error
	String   = logf.String
	Strings  = logf.Strings
	Bytes    = logf.Bytes
	Int      = logf.Int
	Int64    = logf.Int64
	Float64  = logf.Float64
	Duration = logf.Duration
	Bool     = logf.Bool
	Time     = logf.Time
	Any      = logf.Any
)

// Keys of the fields that identify whom a quota decision or a cached value belongs to.
const (
	FieldKeyUserID    = "user_id"
	FieldKeyOperation = "operation"
	FieldKeyCacheKey  = "cache_key"
)

// UserID returns a field with the caller identity.
func UserID(id string) Field { return String(FieldKeyUserID, id) }

// Operation returns a field with the name of a quota-limited operation ("financial-data").
func Operation(name string) Field { return String(FieldKeyOperation, name) }

// CacheKey returns a field with a request cache key.
func CacheKey(key string) Field { return String(FieldKeyCacheKey, key) }

// DurationIn returns the "duration" field with val expressed as an integer number of units (e.g. time.Millisecond).
func DurationIn(val, unit time.Duration) Field {
	return Int64("duration", int64(val/unit))
}

// FieldLogger writes structured log entries.
type FieldLogger interface {
	With(...Field) FieldLogger

	Debug(string, ...Field)
	Info(string, ...Field)
	Warn(string, ...Field)
	Error(string, ...Field)

	Debugf(string, ...interface{})
	Infof(string, ...interface{})
	Warnf(string, ...interface{})
	Errorf(string, ...interface{})

	// AtLevel calls fn only if the level is enabled, so expensive fields are built lazily.
	AtLevel(Level, func(LogFunc))

	// WithLevel returns a logger that additionally drops entries below level.
	WithLevel(level Level) FieldLogger
}

// LogfAdapter implements FieldLogger on top of logf.Logger.
type LogfAdapter struct {
	Logger *logf.Logger
}

var _ FieldLogger = (*LogfAdapter)(nil)

// NewDisabledLogger returns a logger that drops everything.
func NewDisabledLogger() FieldLogger {
	return &LogfAdapter{logf.NewDisabledLogger()}
}

// OrDisabled returns logger itself, or a disabled logger if it's nil.
func OrDisabled(logger FieldLogger) FieldLogger {
	if logger == nil {
		return NewDisabledLogger()
	}
	return logger
}

// NewLogger creates a logger writing asynchronously to the output from cfg.
// The returned CloseFunc must be called before exit, otherwise buffered entries may be lost.
func NewLogger(cfg *Config) (FieldLogger, CloseFunc) {
	channel, closeFunc := logf.NewChannelWriter(logf.ChannelWriterConfig{
		Appender:          newAppender(cfg),
		EnableSyncOnError: true,
	})
	logger := logf.NewLogger(toLogfLevel(cfg.Level), channel).With(logf.Int("pid", os.Getpid()))
	if cfg.AddCaller {
		// The adapter adds one frame between the caller and logf.
		logger = logger.WithCaller().WithCallerSkip(1)
	}
	return &LogfAdapter{logger}, CloseFunc(closeFunc)
}

func (l *LogfAdapter) With(fs ...Field) FieldLogger { return &LogfAdapter{l.Logger.With(fs...)} }

func (l *LogfAdapter) Debug(msg string, fields ...Field) { l.Logger.Debug(msg, fields...) }

func (l *LogfAdapter) Info(msg string, fields ...Field) { l.Logger.Info(msg, fields...) }

func (l *LogfAdapter) Warn(msg string, fields ...Field) { l.Logger.Warn(msg, fields...) }

func (l *LogfAdapter) Error(msg string, fields ...Field) { l.Logger.Error(msg, fields...) }

func (l *LogfAdapter) Debugf(format string, args ...interface{}) { l.logf(LevelDebug, format, args) }

func (l *LogfAdapter) Infof(format string, args ...interface{}) { l.logf(LevelInfo, format, args) }

func (l *LogfAdapter) Warnf(format string, args ...interface{}) { l.logf(LevelWarn, format, args) }

func (l *LogfAdapter) Errorf(format string, args ...interface{}) { l.logf(LevelError, format, args) }

// logf formats the message only if the level is enabled.
func (l *LogfAdapter) logf(level Level, format string, args []interface{}) {
	l.AtLevel(level, func(write LogFunc) {
		write(fmt.Sprintf(format, args...))
	})
}

func (l *LogfAdapter) AtLevel(level Level, fn func(logFunc LogFunc)) {
	l.Logger.AtLevel(toLogfLevel(level), fn)
}

// WithLevel can only raise the level: entries must pass both the new and the previous checks.
func (l *LogfAdapter) WithLevel(level Level) FieldLogger {
	return &LogfAdapter{Logger: l.Logger.WithLevel(toLogfLevel(level))}
}

var logfLevels = map[Level]logf.Level{
	LevelError: logf.LevelError,
	LevelWarn:  logf.LevelWarn,
	LevelInfo:  logf.LevelInfo,
	LevelDebug: logf.LevelDebug,
}

// toLogfLevel converts the level, unknown values mean info.
func toLogfLevel(level Level) logf.Level {
	if l, ok := logfLevels[level]; ok {
		return l
	}
	return logf.LevelInfo
}
