/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"io"
	"path/filepath"
	"strings"
	"time"
)

// DataType is a format of configuration data.
type DataType string

// Supported data formats.
const (
	DataTypeYAML DataType = "yaml"
	DataTypeJSON DataType = "json"
)

// DataTypeFromPath detects the format by file extension. Anything but ".json" is treated as YAML.
func DataTypeFromPath(path string) DataType {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return DataTypeJSON
	}
	return DataTypeYAML
}

// DataProvider gives configuration sections typed access to raw values.
// Getters return *KeyError if the value cannot be converted.
type DataProvider interface {
	SetDefault(key string, value interface{})
	IsSet(key string) bool
	Get(key string) interface{}

	GetBool(key string) (bool, error)
	GetInt(key string) (int, error)
	GetString(key string) (string, error)
	GetStringFromSet(key string, set []string, ignoreCase bool) (string, error)
	GetStringSlice(key string) ([]string, error)
	GetDuration(key string) (time.Duration, error)
	GetByteSize(key string) (ByteSize, error)

	// UnmarshalKey decodes a nested value (map, struct) into rawVal.
	// Durations may be written as strings ("1m"), TimeDuration and ByteSize fields are decoded from text.
	UnmarshalKey(key string, rawVal interface{}) error

	// WrapKeyErr returns *KeyError with the full key name (including the section prefix).
	WrapKeyErr(key string, err error) error
}

// SourceDataProvider is a DataProvider that can read configuration data from files and streams.
type SourceDataProvider interface {
	DataProvider
	ReadFile(path string, dataType DataType) error
	Read(reader io.Reader, dataType DataType) error
}

// KeyError describes an invalid value of a configuration key.
type KeyError struct {
	Key string
	Err error
}

func (e *KeyError) Error() string {
	return e.Key + ": " + e.Err.Error()
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// WrapKeyErr wraps err into *KeyError. It returns nil if err is nil.
func WrapKeyErr(key string, err error) error {
	if err == nil {
		return nil
	}
	return &KeyError{Key: key, Err: err}
}
