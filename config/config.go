/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package config loads configuration sections from YAML/JSON files and environment variables.
//
// Every section (logging, HTTP server, cache, rate limiting, market data) implements the Config interface,
// so a single Loader call fills all of them from one file. Keys of a section are resolved relative to its prefix
// (see KeyPrefixProvider), e.g. "cache.maxSize" for the cache section.
package config

// Config is a configuration section filled by Loader.
type Config interface {
	// SetProviderDefaults registers default values of the section keys.
	SetProviderDefaults(dp DataProvider)

	// Set reads and validates the section. Invalid values are reported with dp.WrapKeyErr.
	Set(dp DataProvider) error
}

// KeyPrefixProvider is implemented by sections whose keys live under a common prefix ("cache", "rateLimit").
type KeyPrefixProvider interface {
	KeyPrefix() string
}
