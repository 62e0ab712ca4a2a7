/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"github.com/acronis/go-quotakit/config"
	"github.com/acronis/go-quotakit/httpserver"
	"github.com/acronis/go-quotakit/log"
	"github.com/acronis/go-quotakit/marketdata"
	"github.com/acronis/go-quotakit/profserver"
	"github.com/acronis/go-quotakit/ratelimit"
	"github.com/acronis/go-quotakit/reqcache"
)

const envVarsPrefix = "quotakit"

// AppConfig aggregates configuration sections of the daemon.
type AppConfig struct {
	Log        *log.Config
	Server     *httpserver.Config
	Cache      *reqcache.Config
	RateLimit  *ratelimit.Config
	MarketData *marketdata.Config
	ProfServer *profserver.Config
}

// NewAppConfig creates a new AppConfig with empty sections.
func NewAppConfig() *AppConfig {
	return &AppConfig{
		Log:        log.NewConfig(),
		Server:     httpserver.NewConfig(),
		Cache:      reqcache.NewConfig(),
		RateLimit:  ratelimit.NewConfig(),
		MarketData: marketdata.NewConfig(),
		ProfServer: profserver.NewConfig(),
	}
}

func (c *AppConfig) sections() []config.Config {
	return []config.Config{c.Log, c.Server, c.Cache, c.RateLimit, c.MarketData, c.ProfServer}
}

// loadAppConfig reads the file at path (if any) and environment variables prefixed with QUOTAKIT_.
func loadAppConfig(loader *config.Loader, path string) (*AppConfig, error) {
	cfg := NewAppConfig()
	sections := cfg.sections()
	if path == "" {
		return cfg, loader.LoadDefaults(sections[0], sections[1:]...)
	}
	return cfg, loader.LoadFromFile(path, "", sections[0], sections[1:]...)
}
