/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"time"

	"github.com/acronis/go-quotakit/log"
)

// Result is the outcome of a quota check.
type Result struct {
	Allowed   bool
	Remaining int
	Limit     int

	// RetryAfter is set when the call is not allowed. It's the whole quota window rounded up to seconds.
	RetryAfter time.Duration

	// FailedOpen is true when the store failed and the call was allowed without a reliable count.
	FailedOpen bool
}

// RetryAfterSeconds returns RetryAfter in whole seconds.
func (r Result) RetryAfterSeconds() int {
	return int(r.RetryAfter / time.Second)
}

// Opts represents options for Limiter.
type Opts struct {
	// Quotas maps operations to their quotas. Nil means DefaultQuotas().
	Quotas map[string]QuotaConfig

	// DefaultQuota is used for operations missing in Quotas. Zero value means DefaultQuota.
	DefaultQuota QuotaConfig

	NowFunc          func() time.Time
	Logger           log.FieldLogger
	MetricsCollector MetricsCollector
}

// Limiter enforces per-user, per-operation quotas.
type Limiter struct {
	store        LogStore
	atomicStore  AtomicLogStore
	quotas       map[string]QuotaConfig
	defaultQuota QuotaConfig
	nowFunc      func() time.Time
	logger       log.FieldLogger
	metrics      MetricsCollector
}

// NewLimiter creates a new Limiter on top of the store.
// If the store implements AtomicLogStore, the count and the append are done atomically.
func NewLimiter(store LogStore, opts Opts) *Limiter {
	quotas := make(map[string]QuotaConfig)
	if opts.Quotas == nil {
		opts.Quotas = DefaultQuotas()
	}
	for op, q := range opts.Quotas {
		quotas[op] = q
	}
	if opts.DefaultQuota == (QuotaConfig{}) {
		opts.DefaultQuota = DefaultQuota
	}
	if opts.NowFunc == nil {
		opts.NowFunc = time.Now
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetrics{}
	}
	atomicStore, _ := store.(AtomicLogStore)
	return &Limiter{
		store:        store,
		atomicStore:  atomicStore,
		quotas:       quotas,
		defaultQuota: opts.DefaultQuota,
		nowFunc:      opts.NowFunc,
		logger:       log.OrDisabled(opts.Logger),
		metrics:      opts.MetricsCollector,
	}
}

// QuotaFor returns the quota of the operation.
func (l *Limiter) QuotaFor(operation string) QuotaConfig {
	if q, ok := l.quotas[operation]; ok {
		return q
	}
	return l.defaultQuota
}

// Check decides whether the user may call the operation now, and records the call if so.
func (l *Limiter) Check(ctx context.Context, userID, operation string) Result {
	quota := l.QuotaFor(operation)
	now := l.nowFunc()
	since := now.Add(-quota.Window)
	rec := NewRecord(userID, operation, GetClientIPFromContext(ctx), now)
	logger := l.logger.With(log.UserID(userID), log.Operation(operation))

	var res Result
	if l.atomicStore != nil {
		count, appended, err := l.atomicStore.AppendIfBelow(ctx, rec, since, quota.MaxRequests)
		if err != nil {
			logger.Error("failed to check quota, allowing the call", log.Error(err))
			res = failOpenResult(quota)
		} else if !appended {
			res = rejectedResult(quota)
		} else {
			res = Result{Allowed: true, Remaining: quota.MaxRequests - count - 1, Limit: quota.MaxRequests}
		}
		l.observe(operation, res)
		return res
	}

	count, err := l.store.CountSince(ctx, userID, operation, since)
	if err != nil {
		logger.Error("failed to count calls, allowing the call", log.Error(err))
		res = failOpenResult(quota)
		l.observe(operation, res)
		return res
	}
	if count >= quota.MaxRequests {
		res = rejectedResult(quota)
		l.observe(operation, res)
		return res
	}

	res = Result{Allowed: true, Remaining: quota.MaxRequests - count - 1, Limit: quota.MaxRequests}
	if err = l.store.Append(ctx, rec); err != nil {
		logger.Error("failed to record the call, allowing it anyway", log.Error(err))
		res.FailedOpen = true
	}
	l.observe(operation, res)
	return res
}

// Info reports the quota state of the user for the operation without recording a call.
func (l *Limiter) Info(ctx context.Context, userID, operation string) Result {
	quota := l.QuotaFor(operation)
	since := l.nowFunc().Add(-quota.Window)

	count, err := l.store.CountSince(ctx, userID, operation, since)
	if err != nil {
		l.logger.Error("failed to count calls for quota info",
			log.UserID(userID), log.Operation(operation), log.Error(err))
		return failOpenResult(quota)
	}
	if count >= quota.MaxRequests {
		return rejectedResult(quota)
	}
	return Result{Allowed: true, Remaining: quota.MaxRequests - count, Limit: quota.MaxRequests}
}

func (l *Limiter) observe(operation string, res Result) {
	switch {
	case res.FailedOpen:
		l.metrics.IncDecisions(operation, DecisionFailedOpen)
	case res.Allowed:
		l.metrics.IncDecisions(operation, DecisionAdmitted)
	default:
		l.logger.Debug("quota exceeded", log.Operation(operation), log.Int("limit", res.Limit))
		l.metrics.IncDecisions(operation, DecisionRejected)
	}
}

func rejectedResult(quota QuotaConfig) Result {
	return Result{Allowed: false, Remaining: 0, Limit: quota.MaxRequests, RetryAfter: ceilToSecond(quota.Window)}
}

func failOpenResult(quota QuotaConfig) Result {
	return Result{Allowed: true, FailedOpen: true, Limit: quota.MaxRequests}
}

func ceilToSecond(d time.Duration) time.Duration {
	if rem := d % time.Second; rem != 0 {
		return d - rem + time.Second
	}
	return d
}
