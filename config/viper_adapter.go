/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ViperAdapter is a SourceDataProvider backed by github.com/spf13/viper.
type ViperAdapter struct {
	viper *viper.Viper
}

var _ SourceDataProvider = (*ViperAdapter)(nil)

// NewViperAdapter creates a new ViperAdapter.
func NewViperAdapter() *ViperAdapter {
	return &ViperAdapter{viper.New()}
}

// UseEnvVars makes environment variables override values from files and defaults.
// With the "quotakit" prefix, "cache.maxSize" is read from QUOTAKIT_CACHE_MAXSIZE.
func (va *ViperAdapter) UseEnvVars(prefix string) {
	va.viper.SetEnvPrefix(prefix)
	va.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	va.viper.AutomaticEnv()
}

// SetDefault registers a value that is used when neither the data nor the environment has the key.
func (va *ViperAdapter) SetDefault(key string, value interface{}) {
	va.viper.SetDefault(key, value)
}

func (va *ViperAdapter) IsSet(key string) bool { return va.viper.IsSet(key) }

func (va *ViperAdapter) Get(key string) interface{} { return va.viper.Get(key) }

// ReadFile reads configuration data from the file at path.
func (va *ViperAdapter) ReadFile(path string, dataType DataType) error {
	va.viper.SetConfigType(string(dataType))
	va.viper.SetConfigFile(path)
	return va.viper.ReadInConfig()
}

// Read reads configuration data from reader.
func (va *ViperAdapter) Read(reader io.Reader, dataType DataType) error {
	va.viper.SetConfigType(string(dataType))
	return va.viper.ReadConfig(reader)
}

func getAs[T any](va *ViperAdapter, key string, conv func(interface{}) (T, error)) (T, error) {
	res, err := conv(va.viper.Get(key))
	return res, WrapKeyErr(key, err)
}

func (va *ViperAdapter) GetInt(key string) (int, error) { return getAs(va, key, cast.ToIntE) }

func (va *ViperAdapter) GetString(key string) (string, error) { return getAs(va, key, cast.ToStringE) }

func (va *ViperAdapter) GetBool(key string) (bool, error) { return getAs(va, key, cast.ToBoolE) }

// GetDuration accepts duration strings ("90s") and integer nanoseconds. A missing key gives zero.
func (va *ViperAdapter) GetDuration(key string) (time.Duration, error) {
	return getAs(va, key, func(v interface{}) (time.Duration, error) {
		if v == nil {
			return 0, nil
		}
		return cast.ToDurationE(v)
	})
}

// GetStringSlice accepts lists and comma-separated strings (the usual form of env vars). Empty items are dropped.
func (va *ViperAdapter) GetStringSlice(key string) ([]string, error) {
	return getAs(va, key, func(v interface{}) ([]string, error) {
		s, ok := v.(string)
		if !ok {
			if v == nil {
				return nil, nil
			}
			return cast.ToStringSliceE(v)
		}
		var res []string
		for _, item := range strings.Split(s, ",") {
			if item = strings.TrimSpace(item); item != "" {
				res = append(res, item)
			}
		}
		return res, nil
	})
}

// GetStringFromSet returns the string value only if it is one of set.
func (va *ViperAdapter) GetStringFromSet(key string, set []string, ignoreCase bool) (string, error) {
	str, err := va.GetString(key)
	if err != nil {
		return "", err
	}
	for _, s := range set {
		if str == s || (ignoreCase && strings.EqualFold(str, s)) {
			return str, nil
		}
	}
	return "", WrapKeyErr(key, fmt.Errorf("unknown value %q, should be one of %v", str, set))
}

// GetByteSize accepts integers and human-readable strings ("250M", "1Gi").
func (va *ViperAdapter) GetByteSize(key string) (ByteSize, error) {
	return getAs(va, key, func(v interface{}) (ByteSize, error) {
		switch val := v.(type) {
		case nil:
			return 0, nil
		case string:
			return parseByteSizeFromString(val)
		default:
			n, err := cast.ToUint64E(val)
			return ByteSize(n), err
		}
	})
}

var unmarshalDecodeHook = mapstructure.ComposeDecodeHookFunc(
	mapstructure.TextUnmarshallerHookFunc(),
	mapstructure.StringToTimeDurationHookFunc(),
	mapstructure.StringToSliceHookFunc(","),
)

func (va *ViperAdapter) UnmarshalKey(key string, rawVal interface{}) error {
	return WrapKeyErr(key, va.viper.UnmarshalKey(key, rawVal, viper.DecodeHook(unmarshalDecodeHook)))
}

func (va *ViperAdapter) WrapKeyErr(key string, err error) error {
	return WrapKeyErr(key, err)
}
