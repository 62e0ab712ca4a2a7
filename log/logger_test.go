/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewLogger_FileOutput(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output = OutputFile
	cfg.Level = LevelWarn
	cfg.File.Path = filepath.Join(t.TempDir(), "quotakit-{{pid}}.log")

	logger, closeLogger := NewLogger(cfg)
	logger.Info("dropped by level")
	logger.With(UserID("u1"), Operation("financial-data")).Warn("quota store is slow", DurationIn(1500*time.Millisecond, time.Millisecond))
	closeLogger()

	data, err := os.ReadFile(expandFilePath(cfg.File.Path, time.Now(), os.Getpid()))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "quota store is slow", entry["msg"])
	require.Equal(t, "u1", entry[FieldKeyUserID])
	require.Equal(t, "financial-data", entry[FieldKeyOperation])
	require.Equal(t, 1500.0, entry["duration"])
	require.Equal(t, float64(os.Getpid()), entry["pid"])
}

func TestExpandFilePath(t *testing.T) {
	start := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	require.Equal(t, "/var/log/quotakit-202503141509-42.log",
		expandFilePath("/var/log/quotakit-{{starttime}}-{{pid}}.log", start, 42))
	require.Equal(t, "quotakit.log", expandFilePath("quotakit.log", start, 42))
}

func TestOrDisabled(t *testing.T) {
	require.NotNil(t, OrDisabled(nil))
	logger := NewDisabledLogger()
	require.Same(t, logger, OrDisabled(logger))
}
