/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package marketdata

import (
	"context"
	"time"

	"github.com/acronis/go-quotakit/log"
	"github.com/acronis/go-quotakit/reqcache"
)

// Default cache TTLs of quotes per asset class.
const (
	DefaultMetalsTTL      = 15 * time.Second
	DefaultCommoditiesTTL = 5 * time.Second
	DefaultQuoteTTL       = 20 * time.Second
)

// TTLs defines how long a quote may be served from cache depending on the asset class.
type TTLs struct {
	Metals      time.Duration
	Commodities time.Duration
	Default     time.Duration
}

// DefaultTTLs returns TTLs used when nothing is configured.
func DefaultTTLs() TTLs {
	return TTLs{Metals: DefaultMetalsTTL, Commodities: DefaultCommoditiesTTL, Default: DefaultQuoteTTL}
}

// For returns the TTL for the asset class.
func (t TTLs) For(class AssetClass) time.Duration {
	switch class {
	case AssetClassMetal:
		return t.Metals
	case AssetClassCommodity:
		return t.Commodities
	default:
		return t.Default
	}
}

// Service returns quotes, fetching them from the price source on cache misses.
type Service struct {
	cache   *reqcache.Cache[Quote]
	source  PriceSource
	ttls    TTLs
	nowFunc func() time.Time
	logger  log.FieldLogger
}

// ServiceOpts represents options for NewService.
type ServiceOpts struct {
	TTLs    TTLs
	NowFunc func() time.Time
	Logger  log.FieldLogger
}

// NewService creates a new Service. Quotes are cached under "quote:<SYMBOL>" keys.
func NewService(cache *reqcache.Cache[Quote], source PriceSource, opts ServiceOpts) *Service {
	defaults := DefaultTTLs()
	if opts.TTLs.Metals <= 0 {
		opts.TTLs.Metals = defaults.Metals
	}
	if opts.TTLs.Commodities <= 0 {
		opts.TTLs.Commodities = defaults.Commodities
	}
	if opts.TTLs.Default <= 0 {
		opts.TTLs.Default = defaults.Default
	}
	if opts.NowFunc == nil {
		opts.NowFunc = time.Now
	}
	return &Service{cache: cache, source: source, ttls: opts.TTLs, nowFunc: opts.NowFunc, logger: log.OrDisabled(opts.Logger)}
}

// CacheKey returns the cache key of the symbol's quote.
func CacheKey(symbol string) string {
	return "quote:" + symbol
}

// GetQuote returns the quote of the instrument. The symbol is case-insensitive.
func (s *Service) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return Quote{}, err
	}
	ttl := s.ttls.For(ClassifySymbol(symbol))
	return s.cache.GetWithTTL(ctx, CacheKey(symbol), func(ctx context.Context) (Quote, error) {
		price, ts, fetchErr := s.source.FetchPrice(ctx, symbol)
		if fetchErr != nil {
			return Quote{}, fetchErr
		}
		if ts.IsZero() {
			ts = s.nowFunc().UTC()
		}
		s.logger.Debug("quote fetched", log.String("symbol", symbol), log.Float64("price", price))
		return newQuoteFromPrice(symbol, price, ts, s.source.Name()), nil
	}, ttl)
}
