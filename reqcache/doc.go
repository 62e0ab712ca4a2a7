/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package reqcache provides an in-memory TTL cache for the results of expensive fetch operations
// (upstream quotes, AI responses, account lookups).
//
// The cache memoizes the value returned by a fetch callback for a bounded time.
// When the number of entries exceeds the configured maximum, the entry with the earliest
// creation time is evicted (insertion order, not access order).
// Stale entries stay in the cache until they are overwritten by a successful fetch,
// removed by Cleanup, or removed by one of the invalidation methods.
//
// Concurrent misses on the same key call the fetcher concurrently unless fetch coalescing is enabled.
package reqcache
