/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/acronis/go-quotakit/log"
	"github.com/acronis/go-quotakit/restapi"
	"github.com/acronis/go-quotakit/retry"
)

// ErrNoPrice is returned when the upstream has no price for the instrument.
var ErrNoPrice = errors.New("upstream returned no price")

// PriceSource fetches the current price of an instrument.
type PriceSource interface {
	FetchPrice(ctx context.Context, symbol string) (price float64, ts time.Time, err error)
	Name() string
}

// upstreamQuoteResponse is the quote payload of Finnhub-compatible APIs.
type upstreamQuoteResponse struct {
	Current   float64 `json:"c"`
	Timestamp int64   `json:"t"`
}

// HTTPPriceSourceOpts represents options for HTTPPriceSource.
type HTTPPriceSourceOpts struct {
	BaseURL string
	APIKey  string
	// SymbolMappings translates instrument symbols into upstream ones (e.g. "EURUSD" -> "OANDA:EUR_USD").
	// Unmapped symbols are sent as is.
	SymbolMappings map[string]string
	// RequestsPerSecond limits outgoing requests. Zero means no limit.
	RequestsPerSecond float64
	Burst             int
	RetryPolicy       retry.Policy
	HTTPClient        *http.Client
	Logger            log.FieldLogger
}

// HTTPPriceSource fetches prices from a Finnhub-compatible HTTP API ("GET {base}/quote?symbol=...&token=...").
type HTTPPriceSource struct {
	baseURL        string
	apiKey         string
	symbolMappings map[string]string
	limiter        *rate.Limiter
	retryPolicy    retry.Policy
	client         *http.Client
	logger         log.FieldLogger
}

var _ PriceSource = (*HTTPPriceSource)(nil)

// NewHTTPPriceSource creates a new HTTPPriceSource.
func NewHTTPPriceSource(opts HTTPPriceSourceOpts) (*HTTPPriceSource, error) {
	if _, err := url.ParseRequestURI(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("parse upstream base URL: %w", err)
	}
	if opts.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests per second must not be negative, got %v", opts.RequestsPerSecond)
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	if opts.RetryPolicy == nil {
		opts.RetryPolicy = retry.ExponentialBackoffPolicy{InitialInterval: 200 * time.Millisecond, MaxAttempts: 2}
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPPriceSource{
		baseURL:        strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:         opts.APIKey,
		symbolMappings: opts.SymbolMappings,
		limiter:        limiter,
		retryPolicy:    opts.RetryPolicy,
		client:         opts.HTTPClient,
		logger:         log.OrDisabled(opts.Logger),
	}, nil
}

// Name returns the name reported as the quote data source.
func (s *HTTPPriceSource) Name() string {
	return "upstream"
}

// FetchPrice fetches the current price of the instrument.
// Transport errors, 5xx and 429 responses are retried according to the retry policy.
func (s *HTTPPriceSource) FetchPrice(ctx context.Context, symbol string) (float64, time.Time, error) {
	upstreamSymbol := symbol
	if mapped, ok := s.symbolMappings[symbol]; ok {
		upstreamSymbol = mapped
	}
	query := url.Values{"symbol": {upstreamSymbol}}
	if s.apiKey != "" {
		query.Set("token", s.apiKey)
	}
	reqURL := s.baseURL + "/quote?" + query.Encode()
	logger := s.logger.With(log.String("symbol", symbol))

	var resp upstreamQuoteResponse
	err := retry.DoWithRetry(ctx, s.retryPolicy, retry.IsTemporaryHTTPError, retry.NewLoggingNotify(logger, "fetch quote"),
		func(ctx context.Context) error {
			if err := s.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("wait for upstream rate limiter: %w", err)
			}
			resp = upstreamQuoteResponse{}
			return restapi.GetJSON(ctx, s.client, reqURL, &resp, logger)
		})
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("fetch quote for %s: %w", symbol, err)
	}
	if resp.Current <= 0 {
		return 0, time.Time{}, fmt.Errorf("fetch quote for %s: %w", symbol, ErrNoPrice)
	}
	var ts time.Time
	if resp.Timestamp > 0 {
		ts = time.Unix(resp.Timestamp, 0).UTC()
	}
	return resp.Current, ts, nil
}
