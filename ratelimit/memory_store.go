/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryStoreKey struct {
	userID    string
	operation string
}

// MemoryStore is an in-process LogStore.
// It's suitable for a single instance of the service and for tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[memoryStoreKey][]Record // sorted by timestamp
}

var (
	_ AtomicLogStore = (*MemoryStore)(nil)
	_ Pruner         = (*MemoryStore)(nil)
)

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[memoryStoreKey][]Record)}
}

// CountSince returns the number of records of the user and operation with a timestamp not before since.
func (s *MemoryStore) CountSince(ctx context.Context, userID, operation string, since time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countSince(memoryStoreKey{userID, operation}, since), nil
}

// Append adds the record to the log.
func (s *MemoryStore) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.append(rec)
	return nil
}

// AppendIfBelow appends rec only if there are fewer than max records of the same user and operation since the given time.
func (s *MemoryStore) AppendIfBelow(ctx context.Context, rec Record, since time.Time, max int) (count int, appended bool, err error) {
	if err = ctx.Err(); err != nil {
		return 0, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	count = s.countSince(memoryStoreKey{rec.UserID, rec.Operation}, since)
	if count >= max {
		return count, false, nil
	}
	s.append(rec)
	return count, true, nil
}

// DeleteBefore removes records with a timestamp before cutoff.
func (s *MemoryStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, recs := range s.records {
		idx := firstNotBefore(recs, cutoff)
		if idx == 0 {
			continue
		}
		deleted += idx
		if idx == len(recs) {
			delete(s.records, key)
			continue
		}
		s.records[key] = append([]Record(nil), recs[idx:]...)
	}
	return deleted, nil
}

// Len returns the total number of records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, recs := range s.records {
		n += len(recs)
	}
	return n
}

func (s *MemoryStore) countSince(key memoryStoreKey, since time.Time) int {
	recs := s.records[key]
	return len(recs) - firstNotBefore(recs, since)
}

func (s *MemoryStore) append(rec Record) {
	key := memoryStoreKey{rec.UserID, rec.Operation}
	recs := s.records[key]
	idx := sort.Search(len(recs), func(i int) bool { return recs[i].Timestamp.After(rec.Timestamp) })
	recs = append(recs, Record{})
	copy(recs[idx+1:], recs[idx:])
	recs[idx] = rec
	s.records[key] = recs
}

func firstNotBefore(recs []Record, t time.Time) int {
	return sort.Search(len(recs), func(i int) bool { return !recs[i].Timestamp.Before(t) })
}
