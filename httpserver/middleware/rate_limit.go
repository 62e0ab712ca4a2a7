/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/acronis/go-quotakit/internal/iplimit"
	"github.com/acronis/go-quotakit/log"
	"github.com/acronis/go-quotakit/restapi"
)

// Code and message of the error returned when the per-IP limiter rejects a request.
const (
	RateLimitErrCode    = restapi.ErrCodeTooManyRequests
	RateLimitErrMessage = restapi.ErrMessageTooManyRequests
)

// RateLimitLogFieldKey it is the name of the logged field that contains a key for the requests rate limiter.
const RateLimitLogFieldKey = "rate_limit_key"

// IPRateLimit is a middleware that limits the rate of HTTP requests per client IP address.
// The client IP is taken from the request's context (see ClientIP middleware).
// If the limiter fails, the request is passed through.
func IPRateLimit(limiter iplimit.Limiter, errDomain string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			key := GetClientIPFromContext(r.Context())
			if key == "" {
				next.ServeHTTP(rw, r)
				return
			}
			logger := GetLoggerFromContext(r.Context())

			allow, retryAfter, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Error("IP rate limiting error, request will be served", log.Error(err),
					log.String(RateLimitLogFieldKey, key))
				next.ServeHTTP(rw, r)
				return
			}
			if !allow {
				retryAfter = retryAfterOrDefault(retryAfter)
				logger.Warn("rate limit exceeded", log.String(RateLimitLogFieldKey, key),
					log.Duration("retry_after", retryAfter))
				rw.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				restapi.RespondError(rw, http.StatusTooManyRequests,
					restapi.NewError(errDomain, RateLimitErrCode, RateLimitErrMessage), logger)
				return
			}
			next.ServeHTTP(rw, r)
		})
	}
}

// retryAfterOrDefault is used when the limiter can't estimate the retry time.
func retryAfterOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	return d
}
