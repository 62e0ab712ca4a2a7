/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-quotakit/log/logtest"
	"github.com/acronis/go-quotakit/ratelimit"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("sqlite://file::memory:", Opts{MaxOpenConns: 1, Logger: logtest.NewRecorder()})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestOpen_UnsupportedDSN(t *testing.T) {
	_, err := Open("mysql://localhost/db", Opts{})
	require.EqualError(t, err, "unsupported database DSN, expected postgres:// or sqlite:// prefix")
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Ping(ctx))
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, offset := range []time.Duration{0, 10 * time.Second, 20 * time.Second} {
		require.NoError(t, store.Append(ctx, ratelimit.NewRecord("u1", "financial-data", "198.51.100.1", base.Add(offset))))
	}
	require.NoError(t, store.Append(ctx, ratelimit.NewRecord("u1", "ai-chat-assistant", "", base)))
	require.NoError(t, store.Append(ctx, ratelimit.NewRecord("u2", "financial-data", "", base)))

	count, err := store.CountSince(ctx, "u1", "financial-data", base.Add(10*time.Second))
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = store.CountSince(ctx, "u1", "financial-data", base)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	var row Row
	require.NoError(t, store.db.Where("user_id = ?", "u2").First(&row).Error)
	require.Equal(t, "financial-data", row.FunctionName)
	require.False(t, row.CreatedAt.IsZero())

	deleted, err := store.DeleteBefore(ctx, base.Add(15*time.Second))
	require.NoError(t, err)
	require.Equal(t, 4, deleted)

	count, err = store.CountSince(ctx, "u1", "financial-data", base)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestStore_WithLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	lim := ratelimit.NewLimiter(newTestStore(t), ratelimit.Opts{NowFunc: func() time.Time { return now }})

	for _, wantRemaining := range []int{2, 1, 0} {
		res := lim.Check(ctx, "u1", ratelimit.OperationConnectMT4Account)
		require.True(t, res.Allowed)
		require.Equal(t, wantRemaining, res.Remaining)
		now = now.Add(time.Minute)
	}
	res := lim.Check(ctx, "u1", ratelimit.OperationConnectMT4Account)
	require.False(t, res.Allowed)
	require.Equal(t, 5*time.Minute, res.RetryAfter)

	now = now.Add(2*time.Minute + time.Second)
	require.True(t, lim.Check(ctx, "u1", ratelimit.OperationConnectMT4Account).Allowed)
}
