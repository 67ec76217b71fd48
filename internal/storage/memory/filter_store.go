// Package memory provides store implementations for development/testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jbellec/marketwatch/internal/alert"
)

// FilterStore is an in-memory alert.FilterStore.
type FilterStore struct {
	mu      sync.RWMutex
	filters map[string]alert.Filter
}

// NewFilterStore constructs a FilterStore.
func NewFilterStore() *FilterStore {
	return &FilterStore{filters: make(map[string]alert.Filter)}
}

// CreateFilter stores a new filter.
func (s *FilterStore) CreateFilter(_ context.Context, f alert.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.filters[f.ID]; exists {
		return alert.ErrConflict
	}
	s.filters[f.ID] = f
	return nil
}

// GetFilter fetches a filter by ID.
func (s *FilterStore) GetFilter(_ context.Context, id string) (alert.Filter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.filters[id]
	if !ok {
		return alert.Filter{}, alert.ErrNotFound
	}
	return f, nil
}

// UpdateFilter replaces a filter row.
func (s *FilterStore) UpdateFilter(_ context.Context, f alert.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.filters[f.ID]; !ok {
		return alert.ErrNotFound
	}
	s.filters[f.ID] = f
	return nil
}

// DeleteFilter removes a filter row.
func (s *FilterStore) DeleteFilter(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.filters[id]; !ok {
		return alert.ErrNotFound
	}
	delete(s.filters, id)
	return nil
}

// ListFilters returns all filters owned by a user, newest first.
func (s *FilterStore) ListFilters(_ context.Context, userID string) ([]alert.Filter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []alert.Filter
	for _, f := range s.filters {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ListDue returns active filters due at or before now, FIFO by due time
// with ties broken by filter ID for determinism.
func (s *FilterStore) ListDue(_ context.Context, now time.Time) ([]alert.Filter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []alert.Filter
	for _, f := range s.filters {
		if f.Active && !f.NextDue.After(now) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NextDue.Equal(out[j].NextDue) {
			return out[i].ID < out[j].ID
		}
		return out[i].NextDue.Before(out[j].NextDue)
	})
	return out, nil
}

// CountActive counts a user's filters with the active flag set.
func (s *FilterStore) CountActive(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, f := range s.filters {
		if f.UserID == userID && f.Active {
			count++
		}
	}
	return count, nil
}

// UpdateSchedule writes the scheduler-owned timestamps only.
func (s *FilterStore) UpdateSchedule(_ context.Context, id string, lastChecked, nextDue time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.filters[id]
	if !ok {
		return alert.ErrNotFound
	}
	f.LastChecked = lastChecked
	f.NextDue = nextDue
	s.filters[id] = f
	return nil
}
