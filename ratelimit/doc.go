/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ratelimit provides a per-user, per-operation quota limiter backed by a durable log of admitted calls.
//
// Every admitted call is appended to a LogStore as a Record. A call is admitted when the number of records
// for the same user and operation within the trailing window of the operation's quota is below the quota maximum.
// Storage errors never block callers: the limiter fails open and logs the error.
//
// Stores that implement AtomicLogStore get strict quotas because the count and the append happen in one step.
// With a plain LogStore, concurrent checks for the same user and operation may be admitted slightly over the quota.
package ratelimit
