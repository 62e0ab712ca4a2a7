/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"time"

	"github.com/rs/xid"
)

// Record is a single admitted call.
type Record struct {
	ID        string
	UserID    string
	Operation string
	IPAddress string
	Timestamp time.Time
}

// NewRecord creates a new Record with a unique, time-ordered ID.
func NewRecord(userID, operation, ipAddress string, ts time.Time) Record {
	return Record{
		ID:        xid.NewWithTime(ts).String(),
		UserID:    userID,
		Operation: operation,
		IPAddress: ipAddress,
		Timestamp: ts,
	}
}

// LogStore is an append-only log of admitted calls.
type LogStore interface {
	// CountSince returns the number of records of the user and operation with a timestamp not before since.
	CountSince(ctx context.Context, userID, operation string, since time.Time) (int, error)

	// Append adds the record to the log.
	Append(ctx context.Context, rec Record) error
}

// AtomicLogStore is a LogStore that is able to count and append in one atomic step.
type AtomicLogStore interface {
	LogStore

	// AppendIfBelow counts records of rec.UserID and rec.Operation with a timestamp not before since
	// and appends rec only if the count is below max.
	// It returns the count observed before appending.
	AppendIfBelow(ctx context.Context, rec Record, since time.Time, max int) (count int, appended bool, err error)
}

// Pruner is implemented by stores that can remove old records.
type Pruner interface {
	// DeleteBefore removes records with a timestamp before cutoff and returns the number of removed records.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type ctxKey int

const ctxKeyClientIP ctxKey = iota

// NewContextWithClientIP returns a new context carrying the IP address of the caller.
// The limiter saves it in appended records.
func NewContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyClientIP, ip)
}

// GetClientIPFromContext extracts the IP address of the caller from the context.
func GetClientIPFromContext(ctx context.Context) string {
	value, _ := ctx.Value(ctxKeyClientIP).(string)
	return value
}
