/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package redisstore provides a ratelimit.AtomicLogStore on top of Redis sorted sets.
//
// Every (user, operation) pair has its own sorted set with record IDs as members and timestamps
// in Unix milliseconds as scores. Sets expire after KeyTTL of inactivity.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/acronis/go-quotakit/ratelimit"
)

// DefaultKeyPrefix is prepended to all keys by default.
const DefaultKeyPrefix = "quotakit:ratelimit:"

// appendIfBelowScript drops records older than the window and appends the new one only while the count is below the limit.
var appendIfBelowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[2]) then
	return {count, 0}
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return {count, 1}
`)

// Opts represents options for Store.
type Opts struct {
	// KeyPrefix is prepended to all keys. Empty value means DefaultKeyPrefix.
	KeyPrefix string

	// KeyTTL is how long a set lives after the last append. It must not be shorter than the longest quota window.
	KeyTTL time.Duration
}

// Store is a ratelimit.AtomicLogStore backed by Redis.
type Store struct {
	client    redis.UniversalClient
	keyPrefix string
	keyTTL    time.Duration
}

var _ ratelimit.AtomicLogStore = (*Store)(nil)

// New creates a new Store using the client.
func New(client redis.UniversalClient, opts Opts) (*Store, error) {
	if opts.KeyTTL <= 0 {
		return nil, fmt.Errorf("key TTL must be positive, got %s", opts.KeyTTL)
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}
	return &Store{client: client, keyPrefix: opts.KeyPrefix, keyTTL: opts.KeyTTL}, nil
}

// Dial parses the Redis URL, connects and checks the connection.
func Dial(ctx context.Context, redisURL string, opts Opts) (*Store, error) {
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	store, err := New(client, opts)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return store, nil
}

// CountSince returns the number of records of the user and operation with a timestamp not before since.
func (s *Store) CountSince(ctx context.Context, userID, operation string, since time.Time) (int, error) {
	count, err := s.client.ZCount(ctx, s.key(userID, operation), score(since), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return int(count), nil
}

// Append adds the record.
func (s *Store) Append(ctx context.Context, rec ratelimit.Record) error {
	key := s.key(rec.UserID, rec.Operation)
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(rec.Timestamp.UnixMilli()), Member: rec.ID})
	pipe.PExpire(ctx, key, s.keyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// AppendIfBelow atomically counts records not before since and appends rec if the count is below max.
func (s *Store) AppendIfBelow(ctx context.Context, rec ratelimit.Record, since time.Time, max int) (count int, appended bool, err error) {
	res, err := appendIfBelowScript.Run(ctx, s.client, []string{s.key(rec.UserID, rec.Operation)},
		since.UnixMilli(), max, rec.Timestamp.UnixMilli(), rec.ID, s.keyTTL.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("run append script: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("unexpected append script result %v", res)
	}
	return int(res[0]), res[1] == 1, nil
}

// Ping checks that Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(userID, operation string) string {
	return s.keyPrefix + operation + ":" + userID
}

func score(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
