/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/acronis/go-quotakit/httpserver/middleware"
	"github.com/acronis/go-quotakit/log"
)

const defaultSlowRequestThreshold = time.Second

// LoggingRoundTripper logs every outgoing request with its status and duration.
type LoggingRoundTripper struct {
	Delegate             http.RoundTripper
	RequestType          string
	Logger               log.FieldLogger
	SlowRequestThreshold time.Duration
}

// RoundTrip logs the request after it's done.
// Failed requests are logged at error level, 5xx and slow requests at warn level.
func (rt *LoggingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := rt.Delegate.RoundTrip(r)
	elapsed := time.Since(start)

	logger := rt.getLogger(r.Context()).With(
		log.String("request_type", rt.RequestType),
		log.String("method", r.Method),
		log.String("host", r.URL.Host),
		log.String("path", r.URL.Path),
		log.Int64("duration_ms", elapsed.Milliseconds()),
	)
	if err != nil {
		logger.Errorf("client http request %s %s failed in %.3fs: %v", r.Method, rt.RequestType, elapsed.Seconds(), err)
		return resp, err
	}

	threshold := rt.SlowRequestThreshold
	if threshold == 0 {
		threshold = defaultSlowRequestThreshold
	}
	logFunc := logger.Infof
	if resp.StatusCode >= http.StatusInternalServerError || elapsed >= threshold {
		logFunc = logger.Warnf
	}
	logFunc("client http request %s %s status code %d, time taken %.3fs",
		r.Method, rt.RequestType, resp.StatusCode, elapsed.Seconds())
	return resp, nil
}

// getLogger prefers the request-scoped logger, so entries carry the ID of the incoming request.
func (rt *LoggingRoundTripper) getLogger(ctx context.Context) log.FieldLogger {
	if middleware.GetRequestIDFromContext(ctx) != "" {
		return middleware.GetLoggerFromContext(ctx)
	}
	return log.OrDisabled(rt.Logger)
}
