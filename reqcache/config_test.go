/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package reqcache

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-quotakit/config"
)

func TestConfig(t *testing.T) {
	cfg := NewConfig()
	err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
		bytes.NewBufferString("cache:\n  maxSize: 500\n  coalesceFetches: true\n"), config.DataTypeYAML, cfg)
	require.NoError(t, err)
	require.Equal(t, &Config{
		MaxSize:         500,
		DefaultTTL:      config.TimeDuration(DefaultTTL),
		CleanupInterval: config.TimeDuration(DefaultCleanupInterval),
		CoalesceFetches: true,
	}, cfg)

	c, err := New[string](cfg.Opts(nil, nil))
	require.NoError(t, err)
	require.Equal(t, 500, c.Stats().MaxSize)
	require.Equal(t, DefaultTTL, c.defaultTTL)
	require.True(t, c.coalesce)

	err = config.NewLoader(config.NewViperAdapter()).LoadFromReader(
		bytes.NewBufferString("cache:\n  defaultTTL: 0s\n"), config.DataTypeYAML, NewConfig())
	require.ErrorContains(t, err, "cache.defaultTTL")
}
