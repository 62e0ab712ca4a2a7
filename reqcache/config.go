/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package reqcache

import (
	"fmt"
	"time"

	"github.com/acronis/go-quotakit/config"
	"github.com/acronis/go-quotakit/log"
)

const cfgDefaultKeyPrefix = "cache"

const (
	cfgKeyMaxSize         = "maxSize"
	cfgKeyDefaultTTL      = "defaultTTL"
	cfgKeyCleanupInterval = "cleanupInterval"
	cfgKeyCoalesceFetches = "coalesceFetches"
)

// DefaultCleanupInterval is how often stale entries are removed by default.
const DefaultCleanupInterval = time.Minute

// Config represents a set of configuration parameters for the cache.
type Config struct {
	MaxSize         int                 `mapstructure:"maxSize" yaml:"maxSize" json:"maxSize"`
	DefaultTTL      config.TimeDuration `mapstructure:"defaultTTL" yaml:"defaultTTL" json:"defaultTTL"`
	CleanupInterval config.TimeDuration `mapstructure:"cleanupInterval" yaml:"cleanupInterval" json:"cleanupInterval"`
	CoalesceFetches bool                `mapstructure:"coalesceFetches" yaml:"coalesceFetches" json:"coalesceFetches"`
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return &Config{}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return cfgDefaultKeyPrefix
}

// SetProviderDefaults sets default configuration values for the cache in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyMaxSize, DefaultMaxSize)
	dp.SetDefault(cfgKeyDefaultTTL, DefaultTTL)
	dp.SetDefault(cfgKeyCleanupInterval, DefaultCleanupInterval)
	dp.SetDefault(cfgKeyCoalesceFetches, false)
}

// Set sets cache configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.MaxSize, err = dp.GetInt(cfgKeyMaxSize); err != nil {
		return err
	}
	if c.MaxSize <= 0 {
		return dp.WrapKeyErr(cfgKeyMaxSize, fmt.Errorf("must be positive"))
	}

	var dur time.Duration
	if dur, err = dp.GetDuration(cfgKeyDefaultTTL); err != nil {
		return err
	}
	if dur <= 0 {
		return dp.WrapKeyErr(cfgKeyDefaultTTL, fmt.Errorf("must be positive"))
	}
	c.DefaultTTL = config.TimeDuration(dur)

	if dur, err = dp.GetDuration(cfgKeyCleanupInterval); err != nil {
		return err
	}
	if dur < 0 {
		return dp.WrapKeyErr(cfgKeyCleanupInterval, fmt.Errorf("cannot be negative"))
	}
	c.CleanupInterval = config.TimeDuration(dur)

	c.CoalesceFetches, err = dp.GetBool(cfgKeyCoalesceFetches)
	return err
}

// Opts converts the configuration into options for New.
func (c *Config) Opts(logger log.FieldLogger, metrics MetricsCollector) Opts {
	return Opts{
		MaxSize:          c.MaxSize,
		DefaultTTL:       time.Duration(c.DefaultTTL),
		Logger:           logger,
		MetricsCollector: metrics,
		CoalesceFetches:  c.CoalesceFetches,
	}
}
