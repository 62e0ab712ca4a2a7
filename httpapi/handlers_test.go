/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/acronis/go-quotakit/httpserver/middleware"
	"github.com/acronis/go-quotakit/marketdata"
	"github.com/acronis/go-quotakit/ratelimit"
	"github.com/acronis/go-quotakit/reqcache"
	"github.com/acronis/go-quotakit/restapi"
	"github.com/acronis/go-quotakit/testutil"
)

const testErrDomain = "QuotaKitTest"

type quoteGetterFunc func(ctx context.Context, symbol string) (marketdata.Quote, error)

func (f quoteGetterFunc) GetQuote(ctx context.Context, symbol string) (marketdata.Quote, error) {
	return f(ctx, symbol)
}

type HandlerTestSuite struct {
	suite.Suite
	store  *ratelimit.MemoryStore
	cache  *reqcache.Cache[string]
	quotes quoteGetterFunc
	router chi.Router
}

func TestHandler(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func (s *HandlerTestSuite) SetupTest() {
	s.store = ratelimit.NewMemoryStore()
	limiter := ratelimit.NewLimiter(s.store, ratelimit.Opts{
		Quotas: map[string]ratelimit.QuotaConfig{
			ratelimit.OperationFinancialData: {Window: time.Minute, MaxRequests: 3},
		},
	})
	var err error
	s.cache, err = reqcache.New[string](reqcache.Opts{})
	s.Require().NoError(err)
	s.quotes = func(ctx context.Context, symbol string) (marketdata.Quote, error) {
		if symbol == "BROKEN" {
			return marketdata.Quote{}, errors.New("connection reset")
		}
		if symbol == "BAD-SYMBOL" {
			return marketdata.Quote{}, marketdata.ErrInvalidSymbol
		}
		return marketdata.Quote{Symbol: symbol, Price: 2345.1}, nil
	}

	h := &Handler{
		Quotas:      limiter,
		Quotes:      s.quotes,
		Cache:       s.cache,
		ErrorDomain: testErrDomain,
	}
	s.router = chi.NewRouter()
	s.router.Use(middleware.ClientIP(false))
	s.router.Route("/api/edge/v1", h.Routes)
}

func (s *HandlerTestSuite) do(method, target, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "192.0.2.10:4321"
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	resp := httptest.NewRecorder()
	s.router.ServeHTTP(resp, req)
	return resp
}

func (s *HandlerTestSuite) TestGetQuote_QuotaEnforced() {
	for i, wantRemaining := range []int{2, 1, 0} {
		resp := s.do(http.MethodGet, "/api/edge/v1/quotes/XAUUSD", "user-1")
		s.Require().Equal(http.StatusOK, resp.Code, "call #%d", i+1)
		s.Require().Equal("3", resp.Header().Get(ratelimit.HeaderRateLimitLimit))
		s.Require().Equal(strconv.Itoa(wantRemaining), resp.Header().Get(ratelimit.HeaderRateLimitRemaining))
	}

	resp := s.do(http.MethodGet, "/api/edge/v1/quotes/XAUUSD", "user-1")
	s.Require().Equal(http.StatusTooManyRequests, resp.Code)
	s.Require().Equal("60", resp.Header().Get(ratelimit.HeaderRetryAfter))
	s.Require().Equal("0", resp.Header().Get(ratelimit.HeaderRateLimitRemaining))
	s.Require().NotEmpty(resp.Header().Get(ratelimit.HeaderRateLimitReset))
	var body ratelimit.RateLimitErrorBody
	s.Require().NoError(json.Unmarshal(resp.Body.Bytes(), &body))
	s.Require().Equal(ratelimit.RateLimitErrorBody{
		Error:      "Rate limit exceeded. Please try again in 60 seconds.",
		ErrorType:  ratelimit.ErrorTypeRateLimit,
		RetryAfter: 60,
		Limit:      3,
	}, body)

	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/api/edge/v1/quotes/XAUUSD", "user-2").Code,
		"quotas are per user")
}

func (s *HandlerTestSuite) TestGetQuote_RecordsClientIP() {
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/api/edge/v1/quotes/EURUSD", "user-1").Code)
	n, err := s.store.CountSince(context.Background(), "user-1", ratelimit.OperationFinancialData, time.Time{})
	s.Require().NoError(err)
	s.Require().Equal(1, n)
}

func (s *HandlerTestSuite) TestGetQuote_Errors() {
	resp := s.do(http.MethodGet, "/api/edge/v1/quotes/XAUUSD", "")
	testutil.RequireErrorInRecorder(s.T(), resp, http.StatusUnauthorized, testErrDomain, restapi.ErrCodeUnauthenticated)

	resp = s.do(http.MethodGet, "/api/edge/v1/quotes/BROKEN", "user-1")
	testutil.RequireErrorInRecorder(s.T(), resp, http.StatusBadGateway, testErrDomain, restapi.ErrCodeUpstreamFailed)

	resp = s.do(http.MethodGet, "/api/edge/v1/quotes/BAD-SYMBOL", "user-1")
	testutil.RequireErrorInRecorder(s.T(), resp, http.StatusBadRequest, testErrDomain, restapi.ErrCodeInvalidParam)
}

func (s *HandlerTestSuite) TestGetQuota_DoesNotConsume() {
	for i := 0; i < 5; i++ {
		resp := s.do(http.MethodGet, "/api/edge/v1/quotas/"+ratelimit.OperationFinancialData, "user-1")
		var info QuotaInfo
		testutil.RequireJSONInRecorder(s.T(), resp, http.StatusOK, &info)
		s.Require().Equal(QuotaInfo{
			Operation: ratelimit.OperationFinancialData, Limit: 3, Remaining: 3, WindowSeconds: 60,
		}, info)
		s.Require().Equal("3", resp.Header().Get(ratelimit.HeaderRateLimitRemaining))
	}

	resp := s.do(http.MethodGet, "/api/edge/v1/quotas/unknown-operation", "user-1")
	var info QuotaInfo
	testutil.RequireJSONInRecorder(s.T(), resp, http.StatusOK, &info)
	s.Require().Equal(ratelimit.DefaultQuota.MaxRequests, info.Limit)
	s.Require().Equal(60, info.WindowSeconds)
}

func (s *HandlerTestSuite) TestCache() {
	ctx := context.Background()
	for _, key := range []string{"user:1", "user:2", "order:1"} {
		_, err := s.cache.Get(ctx, key, func(context.Context) (string, error) { return "v", nil })
		s.Require().NoError(err)
	}

	resp := s.do(http.MethodGet, "/api/edge/v1/cache/stats", "")
	var stats reqcache.Stats
	testutil.RequireJSONInRecorder(s.T(), resp, http.StatusOK, &stats)
	s.Require().Equal(3, stats.Size)
	s.Require().ElementsMatch([]string{"user:1", "user:2", "order:1"}, stats.Keys)

	resp = s.do(http.MethodDelete, "/api/edge/v1/cache?pattern=user:", "")
	s.Require().Equal(http.StatusOK, resp.Code)
	s.Require().JSONEq(`{"invalidated":2}`, resp.Body.String())
	s.Require().Equal(1, s.cache.Len())

	resp = s.do(http.MethodDelete, "/api/edge/v1/cache?pattern=order:*&mode=glob", "")
	s.Require().JSONEq(`{"invalidated":1}`, resp.Body.String())

	resp = s.do(http.MethodDelete, "/api/edge/v1/cache?pattern=(", "")
	s.Require().Equal(http.StatusBadRequest, resp.Code)
	resp = s.do(http.MethodDelete, "/api/edge/v1/cache", "")
	s.Require().Equal(http.StatusBadRequest, resp.Code)
	resp = s.do(http.MethodDelete, "/api/edge/v1/cache?pattern=x&mode=fuzzy", "")
	s.Require().Equal(http.StatusBadRequest, resp.Code)
}

func TestQuota_FailedOpenHasNoHeaders(t *testing.T) {
	checker := fakeChecker{res: ratelimit.Result{Allowed: true, FailedOpen: true, Limit: 3}}
	served := false
	h := RequireUser(testErrDomain)(Quota(checker, ratelimit.OperationFinancialData)(
		http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) { served = true })))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "user-1")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)

	require.True(t, served)
	require.Empty(t, resp.Header().Get(ratelimit.HeaderRateLimitRemaining))
}

type fakeChecker struct {
	res ratelimit.Result
}

func (c fakeChecker) Check(context.Context, string, string) ratelimit.Result { return c.res }
func (c fakeChecker) Info(context.Context, string, string) ratelimit.Result { return c.res }
