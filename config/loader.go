/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"fmt"
	"io"
)

// Loader fills configuration sections from a data provider.
// Defaults of all sections are registered first, so a section may read keys of another one.
type Loader struct {
	DataProvider SourceDataProvider
}

// NewDefaultLoader creates a Loader over viper that also reads environment variables with the given prefix.
func NewDefaultLoader(envVarsPrefix string) *Loader {
	va := NewViperAdapter()
	va.UseEnvVars(envVarsPrefix)
	return NewLoader(va)
}

// NewLoader creates a new Loader.
func NewLoader(dp SourceDataProvider) *Loader {
	return &Loader{DataProvider: dp}
}

// LoadFromFile reads the file and fills the sections. An empty dataType is detected by the file extension.
func (l *Loader) LoadFromFile(path string, dataType DataType, cfg Config, cfgs ...Config) error {
	if dataType == "" {
		dataType = DataTypeFromPath(path)
	}
	if err := l.DataProvider.ReadFile(path, dataType); err != nil {
		return fmt.Errorf("read configuration file %s: %w", path, err)
	}
	return l.LoadDefaults(cfg, cfgs...)
}

// LoadFromReader reads configuration data from reader and fills the sections.
func (l *Loader) LoadFromReader(reader io.Reader, dataType DataType, cfg Config, cfgs ...Config) error {
	if err := l.DataProvider.Read(reader, dataType); err != nil {
		return fmt.Errorf("read configuration: %w", err)
	}
	return l.LoadDefaults(cfg, cfgs...)
}

// LoadDefaults fills the sections without reading any data, only defaults and environment variables are used.
func (l *Loader) LoadDefaults(cfg Config, cfgs ...Config) error {
	sections := append([]Config{cfg}, cfgs...)
	providers := make([]DataProvider, len(sections))
	prefixes := make(map[string]struct{}, len(sections))
	for i, section := range sections {
		providers[i] = l.DataProvider
		if kp, ok := section.(KeyPrefixProvider); ok && kp.KeyPrefix() != "" {
			if _, dup := prefixes[kp.KeyPrefix()]; dup {
				return fmt.Errorf("configuration section %q is passed more than once", kp.KeyPrefix())
			}
			prefixes[kp.KeyPrefix()] = struct{}{}
			providers[i] = NewKeyPrefixedDataProvider(l.DataProvider, kp.KeyPrefix())
		}
		section.SetProviderDefaults(providers[i])
	}
	for i, section := range sections {
		if err := section.Set(providers[i]); err != nil {
			return err
		}
	}
	return nil
}
