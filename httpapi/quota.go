/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/acronis/go-quotakit/httpserver/middleware"
	"github.com/acronis/go-quotakit/log"
	"github.com/acronis/go-quotakit/ratelimit"
	"github.com/acronis/go-quotakit/restapi"
)

// HeaderUserID is the header with the id of the authenticated user. It's set by the authenticating proxy.
const HeaderUserID = "X-User-ID"

// ErrMessageUnauthenticated is used in a response body when the request has no user id.
const ErrMessageUnauthenticated = "User is not authenticated."

type ctxKey int

const ctxKeyUserID ctxKey = iota

// NewContextWithUserID creates a new context with the user id.
func NewContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, userID)
}

// GetUserIDFromContext extracts the user id from the context.
func GetUserIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(ctxKeyUserID).(string)
	return value
}

// QuotaChecker checks and consumes per-user quotas. *ratelimit.Limiter implements it.
type QuotaChecker interface {
	Check(ctx context.Context, userID, operation string) ratelimit.Result
	Info(ctx context.Context, userID, operation string) ratelimit.Result
}

// RequireUser is a middleware that rejects requests without X-User-ID header with 401
// and puts the user id into request's context.
func RequireUser(errDomain string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
			if userID == "" {
				apiErr := restapi.NewError(errDomain, restapi.ErrCodeUnauthenticated, ErrMessageUnauthenticated)
				restapi.RespondError(rw, http.StatusUnauthorized, apiErr, middleware.GetLoggerFromContext(r.Context()))
				return
			}
			next.ServeHTTP(rw, r.WithContext(NewContextWithUserID(r.Context(), userID)))
		})
	}
}

// Quota is a middleware that consumes one call of the operation from the user's quota.
// It must be used after RequireUser. Rejected requests get 429 with the rate limit body and headers,
// allowed ones get X-RateLimit-Limit and X-RateLimit-Remaining headers.
func Quota(checker QuotaChecker, operation string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := middleware.GetLoggerFromContext(ctx)
			userID := GetUserIDFromContext(ctx)

			ctx = ratelimit.NewContextWithClientIP(ctx, middleware.GetClientIPFromContext(ctx))
			res := checker.Check(ctx, userID, operation)
			if !res.Allowed {
				logger.Warn("quota exceeded",
					log.UserID(userID), log.Operation(operation),
					log.Int("limit", res.Limit), log.Duration("retry_after", res.RetryAfter))
				ratelimit.NewRateLimitError(res, time.Now()).Respond(rw, logger)
				return
			}
			ratelimit.SetQuotaHeaders(rw.Header(), res)
			next.ServeHTTP(rw, r)
		})
	}
}
