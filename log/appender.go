/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ssgreg/logf"
	"github.com/ssgreg/logftext"
	"gopkg.in/natefinch/lumberjack.v2"
)

func newAppender(cfg *Config) logf.Appender {
	var w io.Writer
	switch cfg.Output {
	case OutputFile:
		w = newRotatingFile(cfg.File, time.Now())
	case OutputStderr:
		w = os.Stderr
	default:
		w = os.Stdout
	}

	if cfg.Format == FormatText {
		noColor := cfg.NoColor
		return logftext.NewAppender(w, logftext.EncoderConfig{
			NoColor:    &noColor,
			EncodeTime: logf.RFC3339NanoTimeEncoder,
		})
	}
	return logf.NewWriteAppender(w, logf.NewJSONEncoder(logf.JSONEncoderConfig{
		FieldKeyTime: "time",
		EncodeTime:   logf.RFC3339NanoTimeEncoder,
	}))
}

// newRotatingFile opens the log file lazily and rotates it by size.
func newRotatingFile(cfg FileOutputConfig, startTime time.Time) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   expandFilePath(cfg.Path, startTime, os.Getpid()),
		MaxSize:    int(cfg.Rotation.MaxSize / (1024 * 1024)), // lumberjack counts in megabytes
		MaxBackups: cfg.Rotation.MaxBackups,
		MaxAge:     cfg.Rotation.MaxAgeDays,
		Compress:   cfg.Rotation.Compress,
	}
}

// expandFilePath replaces the {{starttime}} and {{pid}} placeholders, so every daemon run may write its own file.
func expandFilePath(path string, startTime time.Time, pid int) string {
	return strings.NewReplacer(
		"{{starttime}}", startTime.Format("200601021504"),
		"{{pid}}", strconv.Itoa(pid),
	).Replace(path)
}
