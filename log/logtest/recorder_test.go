/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package logtest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-quotakit/log"
)

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	logger := rec.With(log.String("component", "limiter"))

	logger.Info("admitted", log.String("user_id", "u1"))
	logger.Error("count failed", log.Error(errors.New("db is down")))

	require.Len(t, rec.Entries(), 2)

	entry, found := rec.FindEntry("admitted")
	require.True(t, found)
	require.Equal(t, log.LevelInfo, entry.Level)
	field, found := entry.FindField("component")
	require.True(t, found)
	require.Equal(t, "limiter", string(field.Bytes))

	require.Len(t, rec.EntriesAtLevel(log.LevelError), 1)

	rec.Reset()
	require.Empty(t, rec.Entries())
}
