/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"context"
	"time"

	"github.com/acronis/go-quotakit/log"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyLogger
	ctxKeyRequestStartTime
	ctxKeyClientIP
)

// NewContextWithRequestID creates a new context with request id.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// GetRequestIDFromContext extracts request id from the context.
func GetRequestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(ctxKeyRequestID).(string)
	return value
}

// NewContextWithLogger creates a new context with logger.
func NewContextWithLogger(ctx context.Context, logger log.FieldLogger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger, logger)
}

// GetLoggerFromContext extracts logger from the context.
// A disabled logger is returned if the context has no logger.
func GetLoggerFromContext(ctx context.Context) log.FieldLogger {
	value, _ := ctx.Value(ctxKeyLogger).(log.FieldLogger)
	return log.OrDisabled(value)
}

// NewContextWithRequestStartTime creates a new context with request start time.
func NewContextWithRequestStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, ctxKeyRequestStartTime, startTime)
}

// GetRequestStartTimeFromContext extracts request start time from the context.
func GetRequestStartTimeFromContext(ctx context.Context) time.Time {
	startTime, _ := ctx.Value(ctxKeyRequestStartTime).(time.Time)
	return startTime
}

// NewContextWithClientIP creates a new context with the IP address of the client.
func NewContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyClientIP, ip)
}

// GetClientIPFromContext extracts the IP address of the client from the context.
func GetClientIPFromContext(ctx context.Context) string {
	value, _ := ctx.Value(ctxKeyClientIP).(string)
	return value
}
