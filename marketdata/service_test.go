/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package marketdata

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-quotakit/reqcache"
)

type fakePriceSource struct {
	mu     sync.Mutex
	prices map[string]float64
	calls  map[string]int
	err    error
}

func newFakePriceSource(prices map[string]float64) *fakePriceSource {
	return &fakePriceSource{prices: prices, calls: map[string]int{}}
}

func (s *fakePriceSource) Name() string { return "fake" }

func (s *fakePriceSource) FetchPrice(_ context.Context, symbol string) (float64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[symbol]++
	if s.err != nil {
		return 0, time.Time{}, s.err
	}
	price, ok := s.prices[symbol]
	if !ok {
		return 0, time.Time{}, ErrNoPrice
	}
	return price, time.Time{}, nil
}

func (s *fakePriceSource) callsFor(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[symbol]
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T, source PriceSource) (*Service, *reqcache.Cache[Quote], *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	cache, err := reqcache.New[Quote](reqcache.Opts{NowFunc: clock.Now})
	require.NoError(t, err)
	return NewService(cache, source, ServiceOpts{NowFunc: clock.Now}), cache, clock
}

func TestService_GetQuote(t *testing.T) {
	ctx := context.Background()
	source := newFakePriceSource(map[string]float64{"XAUUSD": 2345.10, "EURUSD": 1.0850})
	svc, cache, clock := newTestService(t, source)

	quote, err := svc.GetQuote(ctx, "xauusd")
	require.NoError(t, err)
	require.Equal(t, "XAUUSD", quote.Symbol)
	require.Equal(t, 2345.10, quote.Price)
	require.InDelta(t, 2344.925, quote.Bid, 1e-9)
	require.InDelta(t, 2345.275, quote.Ask, 1e-9)
	require.Equal(t, "fake", quote.DataSource)
	require.Equal(t, clock.Now(), quote.Timestamp)

	_, err = svc.GetQuote(ctx, "XAUUSD")
	require.NoError(t, err)
	require.Equal(t, 1, source.callsFor("XAUUSD"), "second call is served from cache")
	require.Equal(t, 1, cache.Len())
}

func TestService_GetQuote_TTLPerAssetClass(t *testing.T) {
	ctx := context.Background()
	source := newFakePriceSource(map[string]float64{"XAUUSD": 2345.10, "USOIL": 78.4, "EURUSD": 1.0850})
	svc, _, clock := newTestService(t, source)

	for _, symbol := range []string{"XAUUSD", "USOIL", "EURUSD"} {
		_, err := svc.GetQuote(ctx, symbol)
		require.NoError(t, err)
	}

	refetchAll := func() {
		for _, symbol := range []string{"XAUUSD", "USOIL", "EURUSD"} {
			_, err := svc.GetQuote(ctx, symbol)
			require.NoError(t, err)
		}
	}

	clock.Advance(DefaultCommoditiesTTL)
	refetchAll()
	require.Equal(t, 1, source.callsFor("XAUUSD"))
	require.Equal(t, 2, source.callsFor("USOIL"))
	require.Equal(t, 1, source.callsFor("EURUSD"))

	clock.Advance(DefaultMetalsTTL - DefaultCommoditiesTTL)
	refetchAll()
	require.Equal(t, 2, source.callsFor("XAUUSD"))
	require.Equal(t, 1, source.callsFor("EURUSD"))

	clock.Advance(DefaultQuoteTTL - DefaultMetalsTTL)
	refetchAll()
	require.Equal(t, 2, source.callsFor("EURUSD"))
}

func TestService_GetQuote_Errors(t *testing.T) {
	ctx := context.Background()
	source := newFakePriceSource(nil)
	svc, cache, _ := newTestService(t, source)

	_, err := svc.GetQuote(ctx, "not a symbol")
	require.ErrorIs(t, err, ErrInvalidSymbol)

	_, err = svc.GetQuote(ctx, "GER40")
	require.ErrorIs(t, err, ErrNoPrice)

	source.err = errors.New("upstream is down")
	_, err = svc.GetQuote(ctx, "EURUSD")
	require.EqualError(t, err, "upstream is down")
	require.Equal(t, 0, cache.Len(), "failed fetches are not cached")
}

func TestClassifySymbol(t *testing.T) {
	require.Equal(t, AssetClassMetal, ClassifySymbol("XAUUSD"))
	require.Equal(t, AssetClassMetal, ClassifySymbol("XAGUSD"))
	require.Equal(t, AssetClassCommodity, ClassifySymbol("USOIL"))
	require.Equal(t, AssetClassOther, ClassifySymbol("BTCUSD"))
}
