/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"fmt"
	"strings"
	"time"

	"github.com/acronis/go-quotakit/config"
	"github.com/acronis/go-quotakit/internal/iplimit"
)

const cfgDefaultKeyPrefix = "server"

const (
	cfgKeyServerAddress                 = "address"
	cfgKeyServerTimeoutsWrite           = "timeouts.write"
	cfgKeyServerTimeoutsRead            = "timeouts.read"
	cfgKeyServerTimeoutsReadHeader      = "timeouts.readHeader"
	cfgKeyServerTimeoutsIdle            = "timeouts.idle"
	cfgKeyServerTimeoutsShutdown        = "timeouts.shutdown"
	cfgKeyServerLogExcludedEndpoints    = "log.excludedEndpoints"
	cfgKeyServerLogSlowRequestThreshold = "log.slowRequestThreshold"
	cfgKeyServerCORSAllowedOrigins      = "cors.allowedOrigins"
	cfgKeyServerIPLimitEnabled          = "ipLimit.enabled"
	cfgKeyServerIPLimitAlg              = "ipLimit.alg"
	cfgKeyServerIPLimitMaxRequests      = "ipLimit.maxRequests"
	cfgKeyServerIPLimitWindow           = "ipLimit.window"
	cfgKeyServerIPLimitBurst            = "ipLimit.burst"
	cfgKeyServerIPLimitMaxKeys          = "ipLimit.maxKeys"
	cfgKeyServerIPLimitTrustForwarded   = "ipLimit.trustForwardedHeaders"
)

const (
	defaultServerAddress            = ":8080"
	defaultServerTimeoutsWrite      = time.Minute
	defaultServerTimeoutsRead       = time.Second * 15
	defaultServerTimeoutsReadHeader = time.Second * 10
	defaultServerTimeoutsIdle       = time.Minute
	defaultServerTimeoutsShutdown   = time.Second * 5
	defaultSlowRequestThreshold     = time.Second
	defaultIPLimitMaxRequests       = 300
	defaultIPLimitWindow            = time.Minute
	defaultIPLimitMaxKeys           = 10000
)

var defaultLogExcludedEndpoints = []string{"/healthz", "/metrics"}

// Config represents a set of configuration parameters for HTTPServer.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader.
type Config struct {
	Address  string         `mapstructure:"address" yaml:"address" json:"address"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts" yaml:"timeouts" json:"timeouts"`
	Log      LogConfig      `mapstructure:"log" yaml:"log" json:"log"`
	CORS     CORSConfig     `mapstructure:"cors" yaml:"cors" json:"cors"`
	IPLimit  IPLimitConfig  `mapstructure:"ipLimit" yaml:"ipLimit" json:"ipLimit"`
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return &Config{}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Address: defaultServerAddress,
		Timeouts: TimeoutsConfig{
			Write:      config.TimeDuration(defaultServerTimeoutsWrite),
			Read:       config.TimeDuration(defaultServerTimeoutsRead),
			ReadHeader: config.TimeDuration(defaultServerTimeoutsReadHeader),
			Idle:       config.TimeDuration(defaultServerTimeoutsIdle),
			Shutdown:   config.TimeDuration(defaultServerTimeoutsShutdown),
		},
		Log: LogConfig{
			ExcludedEndpoints:    defaultLogExcludedEndpoints,
			SlowRequestThreshold: config.TimeDuration(defaultSlowRequestThreshold),
		},
		IPLimit: IPLimitConfig{
			Alg:         string(iplimit.AlgSlidingWindow),
			MaxRequests: defaultIPLimitMaxRequests,
			Window:      config.TimeDuration(defaultIPLimitWindow),
			MaxKeys:     defaultIPLimitMaxKeys,
		},
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	return cfgDefaultKeyPrefix
}

// SetProviderDefaults sets default configuration values for HTTPServer in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyServerAddress, defaultServerAddress)

	dp.SetDefault(cfgKeyServerTimeoutsWrite, defaultServerTimeoutsWrite)
	dp.SetDefault(cfgKeyServerTimeoutsRead, defaultServerTimeoutsRead)
	dp.SetDefault(cfgKeyServerTimeoutsReadHeader, defaultServerTimeoutsReadHeader)
	dp.SetDefault(cfgKeyServerTimeoutsIdle, defaultServerTimeoutsIdle)
	dp.SetDefault(cfgKeyServerTimeoutsShutdown, defaultServerTimeoutsShutdown)

	dp.SetDefault(cfgKeyServerLogExcludedEndpoints, defaultLogExcludedEndpoints)
	dp.SetDefault(cfgKeyServerLogSlowRequestThreshold, defaultSlowRequestThreshold)

	dp.SetDefault(cfgKeyServerIPLimitEnabled, false)
	dp.SetDefault(cfgKeyServerIPLimitAlg, string(iplimit.AlgSlidingWindow))
	dp.SetDefault(cfgKeyServerIPLimitMaxRequests, defaultIPLimitMaxRequests)
	dp.SetDefault(cfgKeyServerIPLimitWindow, defaultIPLimitWindow)
	dp.SetDefault(cfgKeyServerIPLimitMaxKeys, defaultIPLimitMaxKeys)
	dp.SetDefault(cfgKeyServerIPLimitTrustForwarded, false)
}

// Set sets HTTPServer configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Address, err = dp.GetString(cfgKeyServerAddress); err != nil {
		return err
	}
	if c.Address == "" {
		return dp.WrapKeyErr(cfgKeyServerAddress, fmt.Errorf("cannot be empty"))
	}

	if err = c.Timeouts.Set(dp); err != nil {
		return err
	}
	if err = c.Log.Set(dp); err != nil {
		return err
	}
	if err = c.CORS.Set(dp); err != nil {
		return err
	}
	return c.IPLimit.Set(dp)
}

// TimeoutsConfig represents a set of configuration parameters for HTTPServer relating to timeouts.
type TimeoutsConfig struct {
	Write      config.TimeDuration `mapstructure:"write" yaml:"write" json:"write"`
	Read       config.TimeDuration `mapstructure:"read" yaml:"read" json:"read"`
	ReadHeader config.TimeDuration `mapstructure:"readHeader" yaml:"readHeader" json:"readHeader"`
	Idle       config.TimeDuration `mapstructure:"idle" yaml:"idle" json:"idle"`
	Shutdown   config.TimeDuration `mapstructure:"shutdown" yaml:"shutdown" json:"shutdown"`
}

// Set sets timeout server configuration values from config.DataProvider.
func (t *TimeoutsConfig) Set(dp config.DataProvider) error {
	for _, item := range []struct {
		key string
		dst *config.TimeDuration
	}{
		{cfgKeyServerTimeoutsWrite, &t.Write},
		{cfgKeyServerTimeoutsRead, &t.Read},
		{cfgKeyServerTimeoutsReadHeader, &t.ReadHeader},
		{cfgKeyServerTimeoutsIdle, &t.Idle},
		{cfgKeyServerTimeoutsShutdown, &t.Shutdown},
	} {
		dur, err := dp.GetDuration(item.key)
		if err != nil {
			return err
		}
		if dur < 0 {
			return dp.WrapKeyErr(item.key, fmt.Errorf("cannot be negative"))
		}
		*item.dst = config.TimeDuration(dur)
	}
	return nil
}

// LogConfig represents a set of configuration parameters for HTTPServer relating to logging.
type LogConfig struct {
	ExcludedEndpoints    []string            `mapstructure:"excludedEndpoints" yaml:"excludedEndpoints" json:"excludedEndpoints"`
	SlowRequestThreshold config.TimeDuration `mapstructure:"slowRequestThreshold" yaml:"slowRequestThreshold" json:"slowRequestThreshold"`
}

// Set sets log server configuration values from config.DataProvider.
func (l *LogConfig) Set(dp config.DataProvider) error {
	var err error
	if l.ExcludedEndpoints, err = dp.GetStringSlice(cfgKeyServerLogExcludedEndpoints); err != nil {
		return err
	}
	var dur time.Duration
	if dur, err = dp.GetDuration(cfgKeyServerLogSlowRequestThreshold); err != nil {
		return err
	}
	l.SlowRequestThreshold = config.TimeDuration(dur)
	return nil
}

// CORSConfig represents a set of configuration parameters for HTTPServer relating to CORS.
type CORSConfig struct {
	// AllowedOrigins contains exact origins and glob patterns (e.g. "https://*.lovable.app").
	// Empty list disables CORS headers.
	AllowedOrigins []string `mapstructure:"allowedOrigins" yaml:"allowedOrigins" json:"allowedOrigins"`
}

// Set sets CORS configuration values from config.DataProvider.
func (c *CORSConfig) Set(dp config.DataProvider) error {
	var err error
	c.AllowedOrigins, err = dp.GetStringSlice(cfgKeyServerCORSAllowedOrigins)
	return err
}

// IPLimitConfig represents a set of configuration parameters for limiting requests rate per client IP.
type IPLimitConfig struct {
	Enabled               bool                `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Alg                   string              `mapstructure:"alg" yaml:"alg" json:"alg"`
	MaxRequests           int                 `mapstructure:"maxRequests" yaml:"maxRequests" json:"maxRequests"`
	Window                config.TimeDuration `mapstructure:"window" yaml:"window" json:"window"`
	Burst                 int                 `mapstructure:"burst" yaml:"burst" json:"burst"`
	MaxKeys               int                 `mapstructure:"maxKeys" yaml:"maxKeys" json:"maxKeys"`
	TrustForwardedHeaders bool                `mapstructure:"trustForwardedHeaders" yaml:"trustForwardedHeaders" json:"trustForwardedHeaders"`
}

// Set sets IP limit configuration values from config.DataProvider.
func (l *IPLimitConfig) Set(dp config.DataProvider) error {
	var err error

	if l.Enabled, err = dp.GetBool(cfgKeyServerIPLimitEnabled); err != nil {
		return err
	}
	if l.TrustForwardedHeaders, err = dp.GetBool(cfgKeyServerIPLimitTrustForwarded); err != nil {
		return err
	}
	if l.Alg, err = dp.GetStringFromSet(cfgKeyServerIPLimitAlg,
		[]string{string(iplimit.AlgSlidingWindow), string(iplimit.AlgLeakyBucket)}, true); err != nil {
		return err
	}
	l.Alg = strings.ToLower(l.Alg)

	if l.MaxRequests, err = dp.GetInt(cfgKeyServerIPLimitMaxRequests); err != nil {
		return err
	}
	if l.Enabled && l.MaxRequests <= 0 {
		return dp.WrapKeyErr(cfgKeyServerIPLimitMaxRequests, fmt.Errorf("must be positive"))
	}

	var dur time.Duration
	if dur, err = dp.GetDuration(cfgKeyServerIPLimitWindow); err != nil {
		return err
	}
	if l.Enabled && dur <= 0 {
		return dp.WrapKeyErr(cfgKeyServerIPLimitWindow, fmt.Errorf("must be positive"))
	}
	l.Window = config.TimeDuration(dur)

	if l.Burst, err = dp.GetInt(cfgKeyServerIPLimitBurst); err != nil {
		return err
	}
	if l.Burst < 0 {
		return dp.WrapKeyErr(cfgKeyServerIPLimitBurst, fmt.Errorf("cannot be negative"))
	}

	if l.MaxKeys, err = dp.GetInt(cfgKeyServerIPLimitMaxKeys); err != nil {
		return err
	}
	if l.Enabled && l.MaxKeys <= 0 {
		return dp.WrapKeyErr(cfgKeyServerIPLimitMaxKeys, fmt.Errorf("must be positive"))
	}

	return nil
}

// LimiterOpts converts the configuration into options for iplimit.New.
func (l *IPLimitConfig) LimiterOpts() iplimit.Opts {
	return iplimit.Opts{
		Alg:     iplimit.Alg(l.Alg),
		Rate:    iplimit.Rate{Count: l.MaxRequests, Duration: time.Duration(l.Window)},
		Burst:   l.Burst,
		MaxKeys: l.MaxKeys,
	}
}
