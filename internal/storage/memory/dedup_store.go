package memory

import (
	"context"
	"sync"
	"time"
)

// DedupStore is an in-memory alert.DedupStore. The check-then-mark in
// MarkSeen happens under one lock, so overlapping jobs for the same filter
// can never both claim a listing as new.
type DedupStore struct {
	mu   sync.Mutex
	seen map[dedupKey]time.Time
}

type dedupKey struct {
	filterID  string
	listingID string
}

// NewDedupStore constructs a DedupStore.
func NewDedupStore() *DedupStore {
	return &DedupStore{seen: make(map[dedupKey]time.Time)}
}

// Seen reports whether the (filter, listing) pair was already alerted.
func (s *DedupStore) Seen(_ context.Context, filterID, listingID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[dedupKey{filterID, listingID}]
	return ok, nil
}

// MarkSeen records the pair and reports whether it was new.
func (s *DedupStore) MarkSeen(_ context.Context, filterID, listingID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := dedupKey{filterID, listingID}
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = at
	return true, nil
}

// Unmark releases a claimed pair. Unknown pairs are a no-op.
func (s *DedupStore) Unmark(_ context.Context, filterID, listingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, dedupKey{filterID, listingID})
	return nil
}
