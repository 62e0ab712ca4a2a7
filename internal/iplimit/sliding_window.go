/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package iplimit

import (
	"context"
	"fmt"
	"time"

	"github.com/RussellLuo/slidingwindow"

	"github.com/acronis/go-quotakit/reqcache"
)

// SlidingWindowLimiter implements sliding window rate limiting algorithm with a limiter per key.
// Per-key limiters live in a bounded cache, so the oldest keys are forgotten when there are too many of them.
type SlidingWindowLimiter struct {
	limiters *reqcache.Cache[*slidingwindow.Limiter]
	maxRate  Rate
	nowFunc  func() time.Time
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter.
func NewSlidingWindowLimiter(maxRate Rate, maxKeys int) (*SlidingWindowLimiter, error) {
	// A limiter idle for two windows has no state left, so dropping it changes nothing.
	limiters, err := reqcache.New[*slidingwindow.Limiter](reqcache.Opts{MaxSize: maxKeys, DefaultTTL: 2 * maxRate.Duration})
	if err != nil {
		return nil, fmt.Errorf("new cache for per-key limiters: %w", err)
	}
	return &SlidingWindowLimiter{limiters: limiters, maxRate: maxRate, nowFunc: time.Now}, nil
}

// Allow checks if the request should be allowed based on the rate limit.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	if key == "" {
		key = "-"
	}
	lim, err := l.limiters.Get(ctx, key, l.newKeyLimiter)
	if err != nil {
		return false, 0, err
	}
	if lim.Allow() {
		return true, 0, nil
	}
	now := l.nowFunc()
	return false, now.Truncate(l.maxRate.Duration).Add(l.maxRate.Duration).Sub(now), nil
}

func (l *SlidingWindowLimiter) newKeyLimiter(context.Context) (*slidingwindow.Limiter, error) {
	lim, _ := slidingwindow.NewLimiter(l.maxRate.Duration, int64(l.maxRate.Count),
		func() (slidingwindow.Window, slidingwindow.StopFunc) {
			return slidingwindow.NewLocalWindow()
		})
	return lim, nil
}
