/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimitError(t *testing.T) {
	now := time.UnixMilli(1740830400000)
	res := Result{Allowed: false, Limit: 3, RetryAfter: 5 * time.Minute}

	rlErr := NewRateLimitError(res, now)
	require.Equal(t, http.StatusTooManyRequests, rlErr.StatusCode)
	require.EqualError(t, rlErr, "Rate limit exceeded. Please try again in 300 seconds.")

	rec := httptest.NewRecorder()
	rlErr.Respond(rec, nil)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, "1740830700000", rec.Header().Get("X-RateLimit-Reset"))
	require.Equal(t, "300", rec.Header().Get("Retry-After"))
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, map[string]interface{}{
		"error":      "Rate limit exceeded. Please try again in 300 seconds.",
		"errorType":  "RATE_LIMIT",
		"retryAfter": 300.0,
		"limit":      3.0,
		"remaining":  0.0,
	}, body)
}

func TestSetQuotaHeaders(t *testing.T) {
	h := make(http.Header)
	SetQuotaHeaders(h, Result{Allowed: true, Remaining: 4, Limit: 5})
	require.Equal(t, "5", h.Get(HeaderRateLimitLimit))
	require.Equal(t, "4", h.Get(HeaderRateLimitRemaining))

	h = make(http.Header)
	SetQuotaHeaders(h, Result{Allowed: true, FailedOpen: true, Limit: 5})
	require.Empty(t, h)
}
