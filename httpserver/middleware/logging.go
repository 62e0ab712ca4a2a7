/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"fmt"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/acronis/go-quotakit/log"
)

// LoggingOpts represents an options for Logging middleware.
type LoggingOpts struct {
	// ExcludedEndpoints are not logged unless the response status is 4xx or 5xx.
	ExcludedEndpoints []string
	// SlowRequestThreshold makes completed requests that took longer be logged at warn level.
	SlowRequestThreshold time.Duration
}

type loggingHandler struct {
	next   http.Handler
	logger log.FieldLogger
	opts   LoggingOpts
}

// Logging is a middleware that logs info about HTTP request and response.
// Also, it puts logger (with request id and client IP in fields) into request's context.
func Logging(logger log.FieldLogger, opts LoggingOpts) func(next http.Handler) http.Handler {
	if opts.SlowRequestThreshold == 0 {
		opts.SlowRequestThreshold = time.Second
	}
	return func(next http.Handler) http.Handler {
		return &loggingHandler{next: next, logger: log.OrDisabled(logger), opts: opts}
	}
}

func (h *loggingHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := GetRequestStartTimeFromContext(ctx)
	if startTime.IsZero() {
		startTime = time.Now()
		ctx = NewContextWithRequestStartTime(ctx, startTime)
	}

	logger := h.logger.With(
		log.String("request_id", GetRequestIDFromContext(ctx)),
		log.String("client_ip", GetClientIPFromContext(ctx)),
	)

	wrw, ok := rw.(chimw.WrapResponseWriter)
	if !ok {
		wrw = chimw.NewWrapResponseWriter(rw, r.ProtoMajor)
	}
	h.next.ServeHTTP(wrw, r.WithContext(NewContextWithLogger(ctx, logger)))

	status := wrw.Status()
	if status == 0 {
		status = http.StatusOK
	}
	if isExcludedEndpoint(r.URL.Path, h.opts.ExcludedEndpoints) && status < http.StatusBadRequest {
		return
	}

	duration := time.Since(startTime)
	fields := []log.Field{
		log.String("method", r.Method),
		log.String("uri", r.RequestURI),
		log.String("user_agent", r.UserAgent()),
		log.Int("status", status),
		log.Int("bytes_sent", wrw.BytesWritten()),
		log.Int64("duration_ms", duration.Milliseconds()),
	}
	msg := fmt.Sprintf("response completed in %.3fs", duration.Seconds())
	if duration >= h.opts.SlowRequestThreshold {
		logger.Warn(msg, fields...)
		return
	}
	logger.Info(msg, fields...)
}

func isExcludedEndpoint(urlPath string, endpoints []string) bool {
	for _, endpoint := range endpoints {
		if urlPath == endpoint {
			return true
		}
	}
	return false
}
