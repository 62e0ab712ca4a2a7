/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/acronis/go-quotakit/log"
	"github.com/acronis/go-quotakit/restapi"
)

// ErrorTypeRateLimit is the value of the "errorType" field of the rate limit response body.
const ErrorTypeRateLimit = "RATE_LIMIT"

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// RateLimitErrorBody is the JSON body of the response sent when a quota is exceeded.
type RateLimitErrorBody struct {
	Error      string `json:"error"`
	ErrorType  string `json:"errorType"`
	RetryAfter int    `json:"retryAfter"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
}

// RateLimitError is returned to callers whose quota is exceeded.
type RateLimitError struct {
	StatusCode int
	RetryAfter int // seconds
	Limit      int
	ResetAt    time.Time
}

// NewRateLimitError builds a RateLimitError for the rejected result.
func NewRateLimitError(res Result, now time.Time) *RateLimitError {
	retryAfter := res.RetryAfterSeconds()
	return &RateLimitError{
		StatusCode: http.StatusTooManyRequests,
		RetryAfter: retryAfter,
		Limit:      res.Limit,
		ResetAt:    now.Add(time.Duration(retryAfter) * time.Second),
	}
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Rate limit exceeded. Please try again in %d seconds.", e.RetryAfter)
}

// Body returns the JSON body of the response.
func (e *RateLimitError) Body() RateLimitErrorBody {
	return RateLimitErrorBody{
		Error:      e.Error(),
		ErrorType:  ErrorTypeRateLimit,
		RetryAfter: e.RetryAfter,
		Limit:      e.Limit,
		Remaining:  0,
	}
}

// Headers returns the headers of the response.
func (e *RateLimitError) Headers() http.Header {
	h := make(http.Header)
	h.Set(HeaderRateLimitLimit, strconv.Itoa(e.Limit))
	h.Set(HeaderRateLimitRemaining, "0")
	h.Set(HeaderRateLimitReset, strconv.FormatInt(e.ResetAt.UnixMilli(), 10))
	h.Set(HeaderRetryAfter, strconv.Itoa(e.RetryAfter))
	return h
}

// Respond writes the error with its headers and JSON body to the response writer.
func (e *RateLimitError) Respond(rw http.ResponseWriter, logger log.FieldLogger) {
	for key, values := range e.Headers() {
		rw.Header()[key] = values
	}
	restapi.RespondCodeAndJSON(rw, e.StatusCode, e.Body(), logger)
}

// SetQuotaHeaders sets the X-RateLimit-Limit and X-RateLimit-Remaining headers for an allowed result.
// Nothing is set when the limiter failed open because the remaining count is unknown.
func SetQuotaHeaders(h http.Header, res Result) {
	if res.FailedOpen {
		return
	}
	h.Set(HeaderRateLimitLimit, strconv.Itoa(res.Limit))
	h.Set(HeaderRateLimitRemaining, strconv.Itoa(res.Remaining))
}
