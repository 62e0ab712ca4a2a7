/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package reqcache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"

	"github.com/acronis/go-quotakit/log"
)

// Default values for Opts.
const (
	DefaultMaxSize = 100
	DefaultTTL     = 5 * time.Minute
)

// ErrEmptyKey is returned when an empty key is passed to Get or GetWithTTL.
var ErrEmptyKey = errors.New("cache key must not be empty")

// ErrInvalidTTL is returned when a non-positive TTL is passed to GetWithTTL.
var ErrInvalidTTL = errors.New("cache entry TTL must be positive")

// Fetcher produces a value for a key that is missing or stale in the cache.
type Fetcher[V any] func(ctx context.Context) (V, error)

// Opts represents options for the cache.
type Opts struct {
	// MaxSize is the maximum number of entries. Zero means DefaultMaxSize.
	MaxSize int

	// DefaultTTL is used by Get. Zero means DefaultTTL.
	DefaultTTL time.Duration

	// NowFunc returns the current time. Zero value means time.Now.
	NowFunc func() time.Time

	Logger           log.FieldLogger
	MetricsCollector MetricsCollector

	// CoalesceFetches makes concurrent misses on the same key share a single fetcher call.
	CoalesceFetches bool
}

// Stats is a snapshot of the cache state.
type Stats struct {
	Size    int      `json:"size"`
	MaxSize int      `json:"maxSize"`
	Keys    []string `json:"keys"` // Oldest first.
	Hits    int64    `json:"hits"`
	Misses  int64    `json:"misses"`
}

type cacheEntry[V any] struct {
	key       string
	value     V
	createdAt time.Time
	expiresAt time.Time
}

func (e *cacheEntry[V]) isStale(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// Cache is a TTL cache of fetch results keyed by string.
// Entries are kept in the order of their creation time, and the oldest one is evicted first.
type Cache[V any] struct {
	maxSize    int
	defaultTTL time.Duration
	nowFunc    func() time.Time
	logger     log.FieldLogger
	metrics    MetricsCollector

	coalesce bool
	flights  singleflight.Group

	mu      sync.Mutex
	order   *list.List // sorted by createdAt, front is the oldest
	entries map[string]*list.Element

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a new Cache with the provided options.
func New[V any](opts Opts) (*Cache[V], error) {
	if opts.MaxSize < 0 {
		return nil, fmt.Errorf("max size must be greater than or equal to 0, got %d", opts.MaxSize)
	}
	if opts.DefaultTTL < 0 {
		return nil, fmt.Errorf("default TTL must be greater than or equal to 0, got %s", opts.DefaultTTL)
	}
	if opts.MaxSize == 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.DefaultTTL == 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.NowFunc == nil {
		opts.NowFunc = time.Now
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetrics{}
	}
	return &Cache[V]{
		maxSize:    opts.MaxSize,
		defaultTTL: opts.DefaultTTL,
		nowFunc:    opts.NowFunc,
		logger:     log.OrDisabled(opts.Logger),
		metrics:    opts.MetricsCollector,
		coalesce:   opts.CoalesceFetches,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}, nil
}

// Get returns a fresh cached value for the key or calls fetch and caches its result for the default TTL.
func (c *Cache[V]) Get(ctx context.Context, key string, fetch Fetcher[V]) (V, error) {
	return c.GetWithTTL(ctx, key, fetch, c.defaultTTL)
}

// GetWithTTL returns a fresh cached value for the key or calls fetch and caches its result for ttl.
// Errors returned by fetch are passed through as is, and nothing is cached in this case.
// The creation time of a new entry is the time when GetWithTTL was called, not when fetch returned.
func (c *Cache[V]) GetWithTTL(ctx context.Context, key string, fetch Fetcher[V], ttl time.Duration) (V, error) {
	var zero V
	if key == "" {
		return zero, ErrEmptyKey
	}
	if ttl <= 0 {
		return zero, ErrInvalidTTL
	}

	startedAt := c.nowFunc()
	if value, ok := c.lookup(key, startedAt); ok {
		return value, nil
	}

	if !c.coalesce {
		value, err := fetch(ctx)
		if err != nil {
			return zero, err
		}
		c.store(key, value, startedAt, ttl)
		return value, nil
	}

	res, err, shared := c.flights.Do(key, func() (interface{}, error) {
		value, fetchErr := fetch(ctx)
		if fetchErr != nil {
			return nil, fetchErr
		}
		c.store(key, value, startedAt, ttl)
		return value, nil
	})
	if err != nil {
		return zero, err
	}
	if shared {
		c.logger.Debug("fetch result shared between concurrent callers", log.CacheKey(key))
	}
	value, _ := res.(V)
	return value, nil
}

// Invalidate removes all entries whose keys match the regular expression pattern
// and returns the number of removed entries.
// The pattern is not anchored, so a literal such as "user:" matches any key containing it.
func (c *Cache[V]) Invalidate(pattern string) (int, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return 0, err
	}
	return c.InvalidateRegexp(re), nil
}

// Clear removes all entries and returns the number of removed entries.
func (c *Cache[V]) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.metrics.SetAmount(0)
	return n
}

// Cleanup removes all stale entries and returns the number of removed entries.
func (c *Cache[V]) Cleanup() int {
	now := c.nowFunc()
	return c.removeIf(func(e *cacheEntry[V]) bool {
		return e.isStale(now)
	})
}

// Stats returns a snapshot of the cache state.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	keys := make([]string, 0, len(c.entries))
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*cacheEntry[V]).key)
	}
	c.mu.Unlock()

	return Stats{
		Size:    len(keys),
		MaxSize: c.maxSize,
		Keys:    keys,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

// Len returns the number of entries in the cache, including stale ones.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RunPeriodicCleanup removes stale entries every interval until ctx is done.
// It's supposed to be run in a separate goroutine.
func (c *Cache[V]) RunPeriodicCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Cleanup(); n > 0 {
				c.logger.Debug("stale cache entries removed", log.Int("count", n))
			}
		}
	}
}

func (c *Cache[V]) lookup(key string, now time.Time) (value V, ok bool) {
	c.mu.Lock()
	elem, found := c.entries[key]
	if found {
		entry := elem.Value.(*cacheEntry[V])
		if !entry.isStale(now) {
			value, ok = entry.value, true
		}
	}
	c.mu.Unlock()

	if ok {
		c.hits.Inc()
		c.metrics.IncHits()
	} else {
		c.misses.Inc()
		c.metrics.IncMisses()
	}
	return value, ok
}

func (c *Cache[V]) store(key string, value V, createdAt time.Time, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, found := c.entries[key]; found {
		c.order.Remove(elem)
	}
	entry := &cacheEntry[V]{key: key, value: value, createdAt: createdAt, expiresAt: createdAt.Add(ttl)}
	c.entries[key] = c.insertOrdered(entry)

	if len(c.entries) > c.maxSize {
		oldest := c.order.Remove(c.order.Front()).(*cacheEntry[V])
		delete(c.entries, oldest.key)
		c.metrics.AddEvictions(1)
		c.logger.Debug("cache entry evicted", log.CacheKey(oldest.key), log.Time("created_at", oldest.createdAt))
	}
	c.metrics.SetAmount(len(c.entries))
}

// insertOrdered keeps the list sorted by createdAt.
// Fetches may finish out of order, so a new entry is not necessarily the newest one.
func (c *Cache[V]) insertOrdered(entry *cacheEntry[V]) *list.Element {
	for elem := c.order.Back(); elem != nil; elem = elem.Prev() {
		if !elem.Value.(*cacheEntry[V]).createdAt.After(entry.createdAt) {
			return c.order.InsertAfter(entry, elem)
		}
	}
	return c.order.PushFront(entry)
}

func (c *Cache[V]) removeIf(match func(e *cacheEntry[V]) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if entry := elem.Value.(*cacheEntry[V]); match(entry) {
			c.order.Remove(elem)
			delete(c.entries, entry.key)
			removed++
		}
		elem = next
	}
	if removed > 0 {
		c.metrics.SetAmount(len(c.entries))
	}
	return removed
}
