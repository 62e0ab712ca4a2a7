/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package iplimit

import (
	"context"
	"fmt"
	"time"
)

// Rate describes the frequency of requests.
type Rate struct {
	Count    int
	Duration time.Duration
}

// Alg is a rate limiting algorithm.
type Alg string

// Supported algorithms.
const (
	AlgSlidingWindow Alg = "sliding_window"
	AlgLeakyBucket   Alg = "leaky_bucket"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (allow bool, retryAfter time.Duration, err error)
}

// Opts represents options for New.
type Opts struct {
	Alg     Alg
	Rate    Rate
	Burst   int // leaky bucket only
	MaxKeys int
}

// New creates a limiter using the algorithm from opts.
func New(opts Opts) (Limiter, error) {
	if opts.Rate.Count <= 0 || opts.Rate.Duration <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %d per %s", opts.Rate.Count, opts.Rate.Duration)
	}
	if opts.MaxKeys <= 0 {
		return nil, fmt.Errorf("max keys must be positive, got %d", opts.MaxKeys)
	}
	switch opts.Alg {
	case AlgSlidingWindow, "":
		return NewSlidingWindowLimiter(opts.Rate, opts.MaxKeys)
	case AlgLeakyBucket:
		return NewLeakyBucketLimiter(opts.Rate, opts.Burst, opts.MaxKeys)
	default:
		return nil, fmt.Errorf("unknown rate limiting algorithm %q", opts.Alg)
	}
}
