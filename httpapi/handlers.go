/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/acronis/go-quotakit/httpserver/middleware"
	"github.com/acronis/go-quotakit/log"
	"github.com/acronis/go-quotakit/marketdata"
	"github.com/acronis/go-quotakit/ratelimit"
	"github.com/acronis/go-quotakit/reqcache"
	"github.com/acronis/go-quotakit/restapi"
)

// Invalidation modes of DELETE /cache.
const (
	InvalidateModeRegexp    = "regexp"
	InvalidateModeGlob      = "glob"
	InvalidateModeSubstring = "substring"
)

// QuoteGetter returns instrument quotes. *marketdata.Service implements it.
type QuoteGetter interface {
	GetQuote(ctx context.Context, symbol string) (marketdata.Quote, error)
}

// CacheAdmin exposes diagnostics and invalidation of a request cache. *reqcache.Cache implements it.
type CacheAdmin interface {
	Stats() reqcache.Stats
	Invalidate(pattern string) (int, error)
	InvalidateGlob(pattern string) int
	InvalidateSubstrings(substrings ...string) int
}

// QuotaInfo is the response body of GET /quotas/{operation}.
type QuotaInfo struct {
	Operation     string `json:"operation"`
	Limit         int    `json:"limit"`
	Remaining     int    `json:"remaining"`
	WindowSeconds int    `json:"windowSeconds"`
	Exhausted     bool   `json:"exhausted"`
}

// InvalidateResult is the response body of DELETE /cache.
type InvalidateResult struct {
	Invalidated int `json:"invalidated"`
}

// Handler serves the edge API.
type Handler struct {
	Quotas      *ratelimit.Limiter
	Quotes      QuoteGetter
	Cache       CacheAdmin
	ErrorDomain string
}

// Routes registers API routes in the router.
func (h *Handler) Routes(router chi.Router) {
	router.Group(func(router chi.Router) {
		router.Use(RequireUser(h.ErrorDomain))
		router.Get("/quotas/{operation}", h.getQuota)
		router.With(Quota(h.Quotas, ratelimit.OperationFinancialData)).Get("/quotes/{symbol}", h.getQuote)
	})
	router.Get("/cache/stats", h.getCacheStats)
	router.Delete("/cache", h.invalidateCache)
}

func (h *Handler) getQuota(rw http.ResponseWriter, r *http.Request) {
	operation := chi.URLParam(r, "operation")
	userID := GetUserIDFromContext(r.Context())

	res := h.Quotas.Info(r.Context(), userID, operation)
	ratelimit.SetQuotaHeaders(rw.Header(), res)
	restapi.RespondJSON(rw, QuotaInfo{
		Operation:     operation,
		Limit:         res.Limit,
		Remaining:     res.Remaining,
		WindowSeconds: int(h.Quotas.QuotaFor(operation).Window.Seconds()),
		Exhausted:     !res.Allowed,
	}, middleware.GetLoggerFromContext(r.Context()))
}

func (h *Handler) getQuote(rw http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())
	quote, err := h.Quotes.GetQuote(r.Context(), chi.URLParam(r, "symbol"))
	switch {
	case err == nil:
		restapi.RespondJSON(rw, quote, logger)
	case errors.Is(err, marketdata.ErrInvalidSymbol):
		h.respondInvalidParam(rw, "symbol", err, logger)
	case errors.Is(err, marketdata.ErrNoPrice):
		restapi.RespondError(rw, http.StatusNotFound,
			restapi.NewError(h.ErrorDomain, restapi.ErrCodeNotFound, "No price for the instrument."), logger)
	default:
		logger.Error("failed to get quote", log.Error(err))
		restapi.RespondError(rw, http.StatusBadGateway,
			restapi.NewError(h.ErrorDomain, restapi.ErrCodeUpstreamFailed, "Quote provider is unavailable."), logger)
	}
}

func (h *Handler) getCacheStats(rw http.ResponseWriter, r *http.Request) {
	restapi.RespondJSON(rw, h.Cache.Stats(), middleware.GetLoggerFromContext(r.Context()))
}

func (h *Handler) invalidateCache(rw http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())
	query := r.URL.Query()
	pattern := query.Get("pattern")
	if pattern == "" {
		h.respondInvalidParam(rw, "pattern", errors.New("cannot be empty"), logger)
		return
	}

	var n int
	switch mode := query.Get("mode"); mode {
	case "", InvalidateModeRegexp:
		var err error
		if n, err = h.Cache.Invalidate(pattern); err != nil {
			h.respondInvalidParam(rw, "pattern", err, logger)
			return
		}
	case InvalidateModeGlob:
		n = h.Cache.InvalidateGlob(pattern)
	case InvalidateModeSubstring:
		n = h.Cache.InvalidateSubstrings(strings.Split(pattern, ",")...)
	default:
		h.respondInvalidParam(rw, "mode", errors.New("unknown invalidation mode"), logger)
		return
	}

	logger.Info("cache invalidated", log.String("pattern", pattern), log.Int("invalidated", n))
	restapi.RespondJSON(rw, InvalidateResult{Invalidated: n}, logger)
}

func (h *Handler) respondInvalidParam(rw http.ResponseWriter, param string, err error, logger log.FieldLogger) {
	apiErr := restapi.NewError(h.ErrorDomain, restapi.ErrCodeInvalidParam, "Invalid "+param+".").
		AddContext("param", param).AddContext("reason", err.Error())
	restapi.RespondError(rw, http.StatusBadRequest, apiErr, logger)
}
