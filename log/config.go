/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"fmt"
	"strings"

	"github.com/acronis/go-quotakit/config"
)

const cfgDefaultKeyPrefix = "log"

const (
	cfgKeyLevel                  = "level"
	cfgKeyFormat                 = "format"
	cfgKeyOutput                 = "output"
	cfgKeyNoColor                = "nocolor"
	cfgKeyAddCaller              = "addCaller"
	cfgKeyFilePath               = "file.path"
	cfgKeyFileRotationCompress   = "file.rotation.compress"
	cfgKeyFileRotationMaxSize    = "file.rotation.maxSize"
	cfgKeyFileRotationMaxBackups = "file.rotation.maxBackups"
	cfgKeyFileRotationMaxAgeDays = "file.rotation.maxAgeDays"
)

// Default and restriction values.
const (
	DefaultFileRotationMaxSizeBytes = 1024 * 1024 * 250
	MinFileRotationMaxSizeBytes     = 1024 * 1024
	DefaultFileRotationMaxBackups   = 10
)

// Level defines possible values for log levels.
type Level string

// Logging levels.
const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
)

// Format defines possible values for log formats.
type Format string

// Logging formats.
const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Output defines possible values for log outputs.
type Output string

// Logging outputs.
const (
	OutputStdout Output = "stdout"
	OutputStderr Output = "stderr"
	OutputFile   Output = "file"
)

// Config represents a set of configuration parameters for logging.
type Config struct {
	Level     Level
	Format    Format
	Output    Output
	NoColor   bool
	AddCaller bool
	File      FileOutputConfig
}

// FileOutputConfig is a configuration for file log output.
type FileOutputConfig struct {
	Path     string
	Rotation FileRotationConfig
}

// FileRotationConfig is a configuration for file log rotation.
type FileRotationConfig struct {
	Compress   bool
	MaxSize    config.ByteSize
	MaxBackups int
	MaxAgeDays int
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return &Config{}
}

// NewDefaultConfig creates a new instance of the Config with default values (info level, JSON to stdout).
func NewDefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Format: FormatJSON,
		Output: OutputStdout,
		File: FileOutputConfig{
			Rotation: FileRotationConfig{
				MaxSize:    DefaultFileRotationMaxSizeBytes,
				MaxBackups: DefaultFileRotationMaxBackups,
			},
		},
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return cfgDefaultKeyPrefix
}

// SetProviderDefaults sets default configuration values for logger in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyLevel, string(LevelInfo))
	dp.SetDefault(cfgKeyFormat, string(FormatJSON))
	dp.SetDefault(cfgKeyOutput, string(OutputStdout))
	dp.SetDefault(cfgKeyFileRotationMaxSize, DefaultFileRotationMaxSizeBytes)
	dp.SetDefault(cfgKeyFileRotationMaxBackups, DefaultFileRotationMaxBackups)
}

// getEnum reads one of values, case-insensitively.
func getEnum[T ~string](dp config.DataProvider, key string, values ...T) (T, error) {
	set := make([]string, len(values))
	for i := range values {
		set[i] = string(values[i])
	}
	str, err := dp.GetStringFromSet(key, set, true)
	return T(strings.ToLower(str)), err
}

// Set reads and validates the logging section.
func (c *Config) Set(dp config.DataProvider) (err error) {
	if c.Level, err = getEnum(dp, cfgKeyLevel, LevelError, LevelWarn, LevelInfo, LevelDebug); err != nil {
		return err
	}
	if c.Format, err = getEnum(dp, cfgKeyFormat, FormatJSON, FormatText); err != nil {
		return err
	}
	if c.Output, err = getEnum(dp, cfgKeyOutput, OutputStdout, OutputStderr, OutputFile); err != nil {
		return err
	}
	if c.NoColor, err = dp.GetBool(cfgKeyNoColor); err != nil {
		return err
	}
	if c.AddCaller, err = dp.GetBool(cfgKeyAddCaller); err != nil {
		return err
	}
	if c.File, err = readFileOutputConfig(dp, c.Output == OutputFile); err != nil {
		return err
	}
	return nil
}

func readFileOutputConfig(dp config.DataProvider, required bool) (cfg FileOutputConfig, err error) {
	if cfg.Path, err = dp.GetString(cfgKeyFilePath); err != nil {
		return cfg, err
	}
	if cfg.Path == "" && required {
		return cfg, dp.WrapKeyErr(cfgKeyFilePath, fmt.Errorf("cannot be empty when %q output is used", OutputFile))
	}

	rotation := &cfg.Rotation
	if rotation.Compress, err = dp.GetBool(cfgKeyFileRotationCompress); err != nil {
		return cfg, err
	}
	if rotation.MaxSize, err = dp.GetByteSize(cfgKeyFileRotationMaxSize); err != nil {
		return cfg, err
	}
	if rotation.MaxSize < MinFileRotationMaxSizeBytes {
		return cfg, dp.WrapKeyErr(cfgKeyFileRotationMaxSize,
			fmt.Errorf("should be >= %s", config.ByteSize(MinFileRotationMaxSizeBytes)))
	}
	for _, item := range []struct {
		key string
		dst *int
	}{
		{cfgKeyFileRotationMaxBackups, &rotation.MaxBackups},
		{cfgKeyFileRotationMaxAgeDays, &rotation.MaxAgeDays},
	} {
		if *item.dst, err = dp.GetInt(item.key); err != nil {
			return cfg, err
		}
		if *item.dst < 0 {
			return cfg, dp.WrapKeyErr(item.key, fmt.Errorf("should be >= 0"))
		}
	}
	return cfg, nil
}
