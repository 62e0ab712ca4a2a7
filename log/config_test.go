/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-quotakit/config"
)

func TestConfig_Set(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    *Config
		wantErr string
	}{
		{
			name: "defaults",
			want: NewDefaultConfig(),
		},
		{
			name: "file output",
			data: `
log:
  level: DEBUG
  format: text
  output: file
  file:
    path: /var/log/quotakit.log
    rotation:
      maxSize: 10M
      maxBackups: 3
      compress: true
`,
			want: &Config{
				Level:  LevelDebug,
				Format: FormatText,
				Output: OutputFile,
				File: FileOutputConfig{
					Path:     "/var/log/quotakit.log",
					Rotation: FileRotationConfig{Compress: true, MaxSize: 10 * 1024 * 1024, MaxBackups: 3},
				},
			},
		},
		{
			name:    "file output without path",
			data:    "log:\n  output: file\n",
			wantErr: "log.file.path: cannot be empty",
		},
		{
			name:    "unknown level",
			data:    "log:\n  level: verbose\n",
			wantErr: "log.level: unknown value",
		},
		{
			name:    "too small rotation size",
			data:    "log:\n  file:\n    rotation:\n      maxSize: 1K\n",
			wantErr: "log.file.rotation.maxSize: should be >=",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(bytes.NewBufferString(tt.data), config.DataTypeYAML, cfg)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, cfg)
		})
	}
}
