/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package profserver

import (
	"fmt"

	"github.com/acronis/go-quotakit/config"
)

const cfgDefaultKeyPrefix = "profServer"

const (
	cfgKeyEnabled = "enabled"
	cfgKeyAddress = "address"
)

const defaultAddress = "127.0.0.1:8081"

// Config represents a set of configuration parameters for profiling server.
type Config struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Address string `mapstructure:"address" yaml:"address" json:"address"`
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

// SetProviderDefaults sets default configuration values for profiling server in config.DataProvider.
// The server is disabled by default.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyEnabled, false)
	dp.SetDefault(cfgKeyAddress, defaultAddress)
}

// Set sets profiling server configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.Enabled, err = dp.GetBool(cfgKeyEnabled); err != nil {
		return err
	}
	if c.Address, err = dp.GetString(cfgKeyAddress); err != nil {
		return err
	}
	if c.Enabled && c.Address == "" {
		return dp.WrapKeyErr(cfgKeyAddress, fmt.Errorf("cannot be empty when the server is enabled"))
	}
	return nil
}
