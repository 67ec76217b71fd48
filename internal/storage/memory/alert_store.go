package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jbellec/marketwatch/internal/alert"
)

// AlertStore is an in-memory alert.AlertStore.
type AlertStore struct {
	mu     sync.RWMutex
	alerts []alert.Alert
}

// NewAlertStore constructs an AlertStore.
func NewAlertStore() *AlertStore {
	return &AlertStore{}
}

// CreateAlert appends an alert row.
func (s *AlertStore) CreateAlert(_ context.Context, a alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return nil
}

// ListAlerts returns a user's alerts ordered by creation time descending.
func (s *AlertStore) ListAlerts(_ context.Context, userID string, limit, offset int) ([]alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []alert.Alert
	for _, a := range s.alerts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	cp := make([]alert.Alert, len(out))
	copy(cp, out)
	return cp, nil
}
