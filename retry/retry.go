/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package retry runs operations with backoff between attempts.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/acronis/go-quotakit/log"
	"github.com/acronis/go-quotakit/restapi"
)

// IsRetryable defines a func that can tell if error is retryable as opposed to persistent.
type IsRetryable func(error) bool

// RetryableFunc is function that does some work and can be potentially retried.
type RetryableFunc func(ctx context.Context) error

// Policy defines backoff strategy.
type Policy interface {
	NewBackOff() backoff.BackOff
}

// DoWithRetry executes fn with retry according to policy p and with respect to context ctx.
// IsRetryable defines which errors lead to retry attempt (can be nil for any error).
// Notify can be used to receive notification on every retry with error and backoff delay
// (can be nil if no notifications required).
func DoWithRetry(ctx context.Context, p Policy, isRetryable IsRetryable, notify backoff.Notify, fn RetryableFunc) error {
	bctx := backoff.WithContext(p.NewBackOff(), ctx)
	op := func() error {
		err := fn(bctx.Context())
		if err != nil && isRetryable != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(op, bctx, notify)
}

// ExponentialBackoffPolicy means repeat up to max times with exponentially growing delays (1.5 multiplier).
type ExponentialBackoffPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxAttempts     int
}

// NewBackOff implements retry.Policy.
func (p ExponentialBackoffPolicy) NewBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	var bf backoff.BackOff = eb
	if p.MaxAttempts > 0 {
		bf = backoff.WithMaxRetries(eb, uint64(p.MaxAttempts))
	}
	bf.Reset()
	return bf
}

// IsTemporaryHTTPError reports whether err is a restapi.ClientError that may go away on retry.
// Context cancellation is never retried.
func IsTemporaryHTTPError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var clientErr *restapi.ClientError
	return errors.As(err, &clientErr) && clientErr.IsTemporary()
}

// NewLoggingNotify returns a backoff.Notify that logs every failed attempt at warn level.
func NewLoggingNotify(logger log.FieldLogger, operation string) backoff.Notify {
	logger = log.OrDisabled(logger)
	return func(err error, delay time.Duration) {
		logger.Warn("attempt failed, retrying",
			log.String("operation", operation), log.Duration("delay", delay), log.Error(err))
	}
}
