/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"strings"
	"time"
)

// KeyPrefixedDataProvider resolves keys of one configuration section, e.g. "maxSize" as "cache.maxSize".
type KeyPrefixedDataProvider struct {
	delegate  DataProvider
	keyPrefix string
}

var _ DataProvider = (*KeyPrefixedDataProvider)(nil)

// NewKeyPrefixedDataProvider creates a new KeyPrefixedDataProvider.
func NewKeyPrefixedDataProvider(delegate DataProvider, keyPrefix string) *KeyPrefixedDataProvider {
	return &KeyPrefixedDataProvider{delegate: delegate, keyPrefix: keyPrefix}
}

func (kp *KeyPrefixedDataProvider) fullKey(key string) string {
	return strings.Trim(kp.keyPrefix+"."+key, ".")
}

func (kp *KeyPrefixedDataProvider) SetDefault(key string, value interface{}) {
	kp.delegate.SetDefault(kp.fullKey(key), value)
}

func (kp *KeyPrefixedDataProvider) IsSet(key string) bool { return kp.delegate.IsSet(kp.fullKey(key)) }

func (kp *KeyPrefixedDataProvider) Get(key string) interface{} { return kp.delegate.Get(kp.fullKey(key)) }

func (kp *KeyPrefixedDataProvider) GetBool(key string) (bool, error) {
	return kp.delegate.GetBool(kp.fullKey(key))
}

func (kp *KeyPrefixedDataProvider) GetInt(key string) (int, error) {
	return kp.delegate.GetInt(kp.fullKey(key))
}

func (kp *KeyPrefixedDataProvider) GetString(key string) (string, error) {
	return kp.delegate.GetString(kp.fullKey(key))
}

func (kp *KeyPrefixedDataProvider) GetStringFromSet(key string, set []string, ignoreCase bool) (string, error) {
	return kp.delegate.GetStringFromSet(kp.fullKey(key), set, ignoreCase)
}

func (kp *KeyPrefixedDataProvider) GetStringSlice(key string) ([]string, error) {
	return kp.delegate.GetStringSlice(kp.fullKey(key))
}

func (kp *KeyPrefixedDataProvider) GetDuration(key string) (time.Duration, error) {
	return kp.delegate.GetDuration(kp.fullKey(key))
}

func (kp *KeyPrefixedDataProvider) GetByteSize(key string) (ByteSize, error) {
	return kp.delegate.GetByteSize(kp.fullKey(key))
}

func (kp *KeyPrefixedDataProvider) UnmarshalKey(key string, rawVal interface{}) error {
	return kp.delegate.UnmarshalKey(kp.fullKey(key), rawVal)
}

func (kp *KeyPrefixedDataProvider) WrapKeyErr(key string, err error) error {
	return kp.delegate.WrapKeyErr(kp.fullKey(key), err)
}
