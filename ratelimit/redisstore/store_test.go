/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package redisstore

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/xid"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-quotakit/ratelimit"
)

const testRedisURLEnv = "QUOTAKIT_TEST_REDIS_URL"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	redisURL := os.Getenv(testRedisURLEnv)
	if redisURL == "" {
		t.Skipf("%s is not set", testRedisURLEnv)
	}
	store, err := Dial(context.Background(), redisURL, Opts{
		KeyPrefix: "quotakit-test:" + xid.New().String() + ":",
		KeyTTL:    time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}

func TestNew(t *testing.T) {
	_, err := New(nil, Opts{})
	require.EqualError(t, err, "key TTL must be positive, got 0s")
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Now().Truncate(time.Second)

	for _, offset := range []time.Duration{0, 10 * time.Second, 20 * time.Second} {
		require.NoError(t, store.Append(ctx, ratelimit.NewRecord("u1", "op", "", base.Add(offset))))
	}

	count, err := store.CountSince(ctx, "u1", "op", base.Add(10*time.Second))
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, appended, err := store.AppendIfBelow(ctx, ratelimit.NewRecord("u1", "op", "", base.Add(30*time.Second)), base, 3)
	require.NoError(t, err)
	require.False(t, appended)
	require.Equal(t, 3, count)

	count, appended, err = store.AppendIfBelow(ctx, ratelimit.NewRecord("u1", "op", "", base.Add(30*time.Second)), base.Add(5*time.Second), 3)
	require.NoError(t, err)
	require.True(t, appended)
	require.Equal(t, 2, count)

	count, err = store.CountSince(ctx, "u1", "op", base)
	require.NoError(t, err)
	require.Equal(t, 3, count, "records before the window are trimmed by the script")
}

func TestStore_ConcurrentChecks(t *testing.T) {
	store := newTestStore(t)
	lim := ratelimit.NewLimiter(store, ratelimit.Opts{
		Quotas: map[string]ratelimit.QuotaConfig{"op": {Window: time.Minute, MaxRequests: 5}},
	})

	var mu sync.Mutex
	allowed := 0
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lim.Check(context.Background(), "u1", "op").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 5, allowed)
}
