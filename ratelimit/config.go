/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"fmt"
	"strings"
	"time"

	"github.com/acronis/go-quotakit/config"
	"github.com/acronis/go-quotakit/log"
)

const cfgDefaultKeyPrefix = "rateLimit"

const (
	cfgKeyStoreType           = "store.type"
	cfgKeyStoreDSN            = "store.dsn"
	cfgKeyStoreMaxOpenConns   = "store.maxOpenConns"
	cfgKeyStoreRedisURL       = "store.redisURL"
	cfgKeyStoreRedisKeyPrefix = "store.redisKeyPrefix"
	cfgKeyPruneInterval       = "prune.interval"
	cfgKeyPruneRetention      = "prune.retention"
	cfgKeyDefaultQuota        = "defaultQuota"
	cfgKeyQuotas              = "quotas"
)

// StoreType defines where the request log is kept.
type StoreType string

// Supported store types.
const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeSQL    StoreType = "sql"
	StoreTypeRedis  StoreType = "redis"
)

const (
	defaultPruneInterval  = 10 * time.Minute
	defaultPruneRetention = 24 * time.Hour
	defaultMaxOpenConns   = 10
)

// Config represents a set of configuration parameters for the quota limiter and its store.
type Config struct {
	Store        StoreConfig            `mapstructure:"store" yaml:"store" json:"store"`
	Prune        PruneConfig            `mapstructure:"prune" yaml:"prune" json:"prune"`
	DefaultQuota QuotaConfig            `mapstructure:"defaultQuota" yaml:"defaultQuota" json:"defaultQuota"`
	Quotas       map[string]QuotaConfig `mapstructure:"quotas" yaml:"quotas" json:"quotas"`
}

// StoreConfig represents configuration of the request log store.
type StoreConfig struct {
	Type           StoreType `mapstructure:"type" yaml:"type" json:"type"`
	DSN            string    `mapstructure:"dsn" yaml:"dsn" json:"dsn"`
	MaxOpenConns   int       `mapstructure:"maxOpenConns" yaml:"maxOpenConns" json:"maxOpenConns"`
	RedisURL       string    `mapstructure:"redisURL" yaml:"redisURL" json:"redisURL"`
	RedisKeyPrefix string    `mapstructure:"redisKeyPrefix" yaml:"redisKeyPrefix" json:"redisKeyPrefix"`
}

// PruneConfig represents configuration of the periodic removal of old records.
type PruneConfig struct {
	// Interval between prunes. Zero disables pruning.
	Interval  config.TimeDuration `mapstructure:"interval" yaml:"interval" json:"interval"`
	Retention config.TimeDuration `mapstructure:"retention" yaml:"retention" json:"retention"`
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

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyStoreType, string(StoreTypeMemory))
	dp.SetDefault(cfgKeyStoreMaxOpenConns, defaultMaxOpenConns)
	dp.SetDefault(cfgKeyPruneInterval, defaultPruneInterval)
	dp.SetDefault(cfgKeyPruneRetention, defaultPruneRetention)
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	if err := c.setStore(dp); err != nil {
		return err
	}

	var err error
	var dur time.Duration
	if dur, err = dp.GetDuration(cfgKeyPruneInterval); err != nil {
		return err
	}
	if dur < 0 {
		return dp.WrapKeyErr(cfgKeyPruneInterval, fmt.Errorf("cannot be negative"))
	}
	c.Prune.Interval = config.TimeDuration(dur)

	if dur, err = dp.GetDuration(cfgKeyPruneRetention); err != nil {
		return err
	}
	c.Prune.Retention = config.TimeDuration(dur)

	c.DefaultQuota = DefaultQuota
	if dp.IsSet(cfgKeyDefaultQuota) {
		if err = dp.UnmarshalKey(cfgKeyDefaultQuota, &c.DefaultQuota); err != nil {
			return err
		}
		if err = c.DefaultQuota.Validate(); err != nil {
			return dp.WrapKeyErr(cfgKeyDefaultQuota, err)
		}
	}

	var overrides map[string]QuotaConfig
	if dp.IsSet(cfgKeyQuotas) {
		if err = dp.UnmarshalKey(cfgKeyQuotas, &overrides); err != nil {
			return err
		}
	}
	if c.Quotas, err = MergeQuotas(overrides); err != nil {
		return dp.WrapKeyErr(cfgKeyQuotas, err)
	}

	if c.Prune.Interval == 0 {
		return nil
	}
	// Records younger than the longest window must survive pruning.
	if time.Duration(c.Prune.Retention) < c.DefaultQuota.Window {
		return dp.WrapKeyErr(cfgKeyPruneRetention,
			fmt.Errorf("must not be shorter than the default quota window (%s)", c.DefaultQuota.Window))
	}
	for op, q := range c.Quotas {
		if time.Duration(c.Prune.Retention) < q.Window {
			return dp.WrapKeyErr(cfgKeyPruneRetention,
				fmt.Errorf("must not be shorter than the window of %q quota (%s)", op, q.Window))
		}
	}
	return nil
}

func (c *Config) setStore(dp config.DataProvider) error {
	storeType, err := dp.GetStringFromSet(cfgKeyStoreType,
		[]string{string(StoreTypeMemory), string(StoreTypeSQL), string(StoreTypeRedis)}, true)
	if err != nil {
		return err
	}
	c.Store.Type = StoreType(strings.ToLower(storeType))

	if c.Store.DSN, err = dp.GetString(cfgKeyStoreDSN); err != nil {
		return err
	}
	if c.Store.Type == StoreTypeSQL && c.Store.DSN == "" {
		return dp.WrapKeyErr(cfgKeyStoreDSN, fmt.Errorf("cannot be empty when %q store is used", StoreTypeSQL))
	}
	if c.Store.MaxOpenConns, err = dp.GetInt(cfgKeyStoreMaxOpenConns); err != nil {
		return err
	}
	if c.Store.RedisURL, err = dp.GetString(cfgKeyStoreRedisURL); err != nil {
		return err
	}
	if c.Store.Type == StoreTypeRedis && c.Store.RedisURL == "" {
		return dp.WrapKeyErr(cfgKeyStoreRedisURL, fmt.Errorf("cannot be empty when %q store is used", StoreTypeRedis))
	}
	c.Store.RedisKeyPrefix, err = dp.GetString(cfgKeyStoreRedisKeyPrefix)
	return err
}

// LongestWindow returns the longest window among the default quota and all per-operation quotas.
func (c *Config) LongestWindow() time.Duration {
	longest := c.DefaultQuota.Window
	for _, q := range c.Quotas {
		if q.Window > longest {
			longest = q.Window
		}
	}
	return longest
}

// LimiterOpts converts the configuration into options for NewLimiter.
func (c *Config) LimiterOpts(logger log.FieldLogger, metrics MetricsCollector) Opts {
	return Opts{
		Quotas:           c.Quotas,
		DefaultQuota:     c.DefaultQuota,
		Logger:           logger,
		MetricsCollector: metrics,
	}
}
