/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/acronis/go-quotakit/log"
	"github.com/acronis/go-quotakit/log/logtest"
)

var errStoreDown = errors.New("store is down")

// logOnlyStore hides the atomic capabilities of the wrapped store.
type logOnlyStore struct {
	LogStore
}

type failingStore struct {
	countErr  error
	appendErr error
	appended  int
}

func (s *failingStore) CountSince(ctx context.Context, userID, operation string, since time.Time) (int, error) {
	return 0, s.countErr
}

func (s *failingStore) Append(ctx context.Context, rec Record) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appended++
	return nil
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

type LimiterTestSuite struct {
	suite.Suite
	atomic bool
	clock  *testClock
	store  *MemoryStore
}

func TestLimiter(t *testing.T) {
	suite.Run(t, &LimiterTestSuite{atomic: false})
	suite.Run(t, &LimiterTestSuite{atomic: true})
}

func (s *LimiterTestSuite) SetupTest() {
	s.clock = &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s.store = NewMemoryStore()
}

func (s *LimiterTestSuite) newLimiter(opts Opts) *Limiter {
	opts.NowFunc = s.clock.Now
	var store LogStore = s.store
	if !s.atomic {
		store = logOnlyStore{s.store}
	}
	return NewLimiter(store, opts)
}

func (s *LimiterTestSuite) TestQuotaExhaustion() {
	ctx := context.Background()
	lim := s.newLimiter(Opts{Quotas: map[string]QuotaConfig{"op": {Window: time.Minute, MaxRequests: 3}}})

	for _, wantRemaining := range []int{2, 1, 0} {
		res := lim.Check(ctx, "u1", "op")
		s.Require().True(res.Allowed)
		s.Require().False(res.FailedOpen)
		s.Require().Equal(wantRemaining, res.Remaining)
		s.Require().Equal(3, res.Limit)
		s.clock.now = s.clock.now.Add(time.Second)
	}

	res := lim.Check(ctx, "u1", "op")
	s.Require().Equal(Result{Allowed: false, Remaining: 0, Limit: 3, RetryAfter: time.Minute}, res)
	s.Require().Equal(60, res.RetryAfterSeconds())
	s.Require().Equal(3, s.store.Len(), "rejected call must not be recorded")

	// Other users and operations are not affected.
	s.Require().True(lim.Check(ctx, "u2", "op").Allowed)
	s.Require().True(lim.Check(ctx, "u1", "other-op").Allowed)
}

func (s *LimiterTestSuite) TestWindowRollover() {
	ctx := context.Background()
	lim := s.newLimiter(Opts{Quotas: map[string]QuotaConfig{"op": {Window: time.Minute, MaxRequests: 2}}})

	s.Require().True(lim.Check(ctx, "u1", "op").Allowed)
	s.clock.now = s.clock.now.Add(30 * time.Second)
	s.Require().True(lim.Check(ctx, "u1", "op").Allowed)
	s.Require().False(lim.Check(ctx, "u1", "op").Allowed)

	// The first call is exactly at the window start and still counts.
	s.clock.now = s.clock.now.Add(30 * time.Second)
	s.Require().False(lim.Check(ctx, "u1", "op").Allowed)

	s.clock.now = s.clock.now.Add(time.Millisecond)
	res := lim.Check(ctx, "u1", "op")
	s.Require().True(res.Allowed)
	s.Require().Equal(0, res.Remaining)
}

func (s *LimiterTestSuite) TestDefaultQuota() {
	ctx := context.Background()
	lim := s.newLimiter(Opts{})

	s.Require().Equal(DefaultQuota, lim.QuotaFor("unknown-operation"))
	for i := 0; i < 30; i++ {
		s.Require().True(lim.Check(ctx, "u1", "unknown-operation").Allowed)
	}
	res := lim.Check(ctx, "u1", "unknown-operation")
	s.Require().False(res.Allowed)
	s.Require().Equal(30, res.Limit)
	s.Require().Equal(60*time.Second, res.RetryAfter)
}

func (s *LimiterTestSuite) TestBuiltinQuota() {
	lim := s.newLimiter(Opts{})
	s.Require().Equal(QuotaConfig{Window: 5 * time.Minute, MaxRequests: 3}, lim.QuotaFor(OperationConnectMT5Account))
	s.Require().Equal(QuotaConfig{Window: time.Minute, MaxRequests: 60}, lim.QuotaFor(OperationFinancialData))
}

func (s *LimiterTestSuite) TestInfoDoesNotAppend() {
	ctx := context.Background()
	lim := s.newLimiter(Opts{Quotas: map[string]QuotaConfig{"op": {Window: time.Minute, MaxRequests: 2}}})

	s.Require().Equal(Result{Allowed: true, Remaining: 2, Limit: 2}, lim.Info(ctx, "u1", "op"))
	s.Require().Equal(Result{Allowed: true, Remaining: 2, Limit: 2}, lim.Info(ctx, "u1", "op"))
	s.Require().Equal(0, s.store.Len())

	lim.Check(ctx, "u1", "op")
	s.Require().Equal(Result{Allowed: true, Remaining: 1, Limit: 2}, lim.Info(ctx, "u1", "op"))
	lim.Check(ctx, "u1", "op")
	s.Require().Equal(Result{Allowed: false, Remaining: 0, Limit: 2, RetryAfter: time.Minute}, lim.Info(ctx, "u1", "op"))
	s.Require().Equal(2, s.store.Len())
}

func (s *LimiterTestSuite) TestRecordsClientIP() {
	ctx := NewContextWithClientIP(context.Background(), "203.0.113.7")
	lim := s.newLimiter(Opts{})
	lim.Check(ctx, "u1", "op")

	recs := s.store.records[memoryStoreKey{"u1", "op"}]
	s.Require().Len(recs, 1)
	s.Require().Equal("203.0.113.7", recs[0].IPAddress)
	s.Require().Equal(s.clock.now, recs[0].Timestamp)
	s.Require().NotEmpty(recs[0].ID)
}

func TestLimiter_FailOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("count failure", func(t *testing.T) {
		logRecorder := logtest.NewRecorder()
		metrics := NewPrometheusMetrics("")
		store := &failingStore{countErr: errStoreDown}
		lim := NewLimiter(store, Opts{Logger: logRecorder, MetricsCollector: metrics})

		res := lim.Check(ctx, "u1", OperationAIChatAssistant)
		require.True(t, res.Allowed)
		require.True(t, res.FailedOpen)
		require.Equal(t, 0, store.appended)

		res = lim.Info(ctx, "u1", OperationAIChatAssistant)
		require.True(t, res.Allowed)
		require.True(t, res.FailedOpen)

		require.Len(t, logRecorder.EntriesAtLevel(log.LevelError), 2)
		require.Equal(t, 1.0, testutil.ToFloat64(
			metrics.DecisionsTotal.WithLabelValues(OperationAIChatAssistant, DecisionFailedOpen)))
	})

	t.Run("append failure", func(t *testing.T) {
		logRecorder := logtest.NewRecorder()
		lim := NewLimiter(&failingStore{appendErr: errStoreDown}, Opts{Logger: logRecorder})

		res := lim.Check(ctx, "u1", OperationAIChatAssistant)
		require.Equal(t, Result{Allowed: true, Remaining: 19, Limit: 20, FailedOpen: true}, res)

		entry, found := logRecorder.FindEntry("failed to record the call, allowing it anyway")
		require.True(t, found)
		require.Equal(t, log.LevelError, entry.Level)
	})

	t.Run("canceled context on atomic store", func(t *testing.T) {
		canceledCtx, cancel := context.WithCancel(ctx)
		cancel()
		lim := NewLimiter(NewMemoryStore(), Opts{})
		res := lim.Check(canceledCtx, "u1", "op")
		require.True(t, res.Allowed)
		require.True(t, res.FailedOpen)
	})
}

func TestLimiter_Metrics(t *testing.T) {
	ctx := context.Background()
	metrics := NewPrometheusMetrics("")
	lim := NewLimiter(NewMemoryStore(), Opts{
		Quotas:           map[string]QuotaConfig{"op": {Window: time.Minute, MaxRequests: 1}},
		MetricsCollector: metrics,
	})

	lim.Check(ctx, "u1", "op")
	lim.Check(ctx, "u1", "op")
	lim.Check(ctx, "u1", "op")

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.DecisionsTotal.WithLabelValues("op", DecisionAdmitted)))
	require.Equal(t, 2.0, testutil.ToFloat64(metrics.DecisionsTotal.WithLabelValues("op", DecisionRejected)))
}

func TestLimiter_AtomicStoreNeverOverAdmits(t *testing.T) {
	const (
		maxRequests = 5
		callers     = 50
	)
	store := NewMemoryStore()
	lim := NewLimiter(store, Opts{Quotas: map[string]QuotaConfig{"op": {Window: time.Minute, MaxRequests: maxRequests}}})

	var mu sync.Mutex
	allowed := 0
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
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

	require.Equal(t, maxRequests, allowed)
	require.Equal(t, maxRequests, store.Len())
}

func TestMergeQuotas(t *testing.T) {
	quotas, err := MergeQuotas(map[string]QuotaConfig{
		OperationFinancialData: {Window: 30 * time.Second, MaxRequests: 100},
		"export-report":        {Window: time.Hour, MaxRequests: 2},
	})
	require.NoError(t, err)
	require.Equal(t, QuotaConfig{Window: 30 * time.Second, MaxRequests: 100}, quotas[OperationFinancialData])
	require.Equal(t, QuotaConfig{Window: time.Hour, MaxRequests: 2}, quotas["export-report"])
	require.Equal(t, QuotaConfig{Window: time.Minute, MaxRequests: 20}, quotas[OperationAIChatAssistant])

	_, err = MergeQuotas(map[string]QuotaConfig{"bad": {Window: time.Minute}})
	require.EqualError(t, err, `quota for operation "bad": max requests must be positive, got 0`)
}
