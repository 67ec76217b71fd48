// Package quota enforces subscription-tier limits on pipeline work.
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jbellec/marketwatch/internal/alert"
)

// Ledger tracks per-user consumption against plan limits. Reservations are
// atomic under a single lock so two concurrent workers for the same user
// cannot both succeed once a budget is exhausted.
//
// The per-minute counter uses a fixed-boundary window (unix/60 bucketing),
// matching the production rate limiter this replaces. The daily counter
// resets at UTC midnight.
type Ledger struct {
	limits   func(alert.PlanCode) alert.PlanLimits
	resolver alert.PlanResolver
	filters  alert.FilterStore
	clock    alert.Clock

	mu    sync.Mutex
	users map[string]*window
}

type window struct {
	minuteBucket int64
	checks       int
	day          string
	alerts       int
}

// NewLedger constructs a Ledger. The limits func is consulted on every
// reservation so plan changes take effect on the next evaluation.
func NewLedger(
	limits func(alert.PlanCode) alert.PlanLimits,
	resolver alert.PlanResolver,
	filters alert.FilterStore,
	clock alert.Clock,
) *Ledger {
	return &Ledger{
		limits:   limits,
		resolver: resolver,
		filters:  filters,
		clock:    clock,
		users:    make(map[string]*window),
	}
}

// TryReserveCheck consumes one unit of the per-minute check budget.
func (l *Ledger) TryReserveCheck(userID string) bool {
	now := l.clock.Now()
	limit := l.Limits(userID).MaxChecksPerMinute

	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.window(userID, now)
	if w.checks >= limit {
		return false
	}
	w.checks++
	return true
}

// ReleaseCheck returns one unit of the per-minute check budget. Used when a
// reserved check never ran, for example because the job queue rejected it.
// If the minute window has already rolled over the release is a no-op.
func (l *Ledger) ReleaseCheck(userID string) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.users[userID]
	if !ok || w.minuteBucket != now.Unix()/60 {
		return
	}
	if w.checks > 0 {
		w.checks--
	}
}

// TryReserveAlert consumes one unit of the daily alert budget.
func (l *Ledger) TryReserveAlert(userID string) bool {
	now := l.clock.Now()
	limit := l.Limits(userID).MaxAlertsPerDay

	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.window(userID, now)
	if w.alerts >= limit {
		return false
	}
	w.alerts++
	return true
}

// CanActivateFilter reports whether the user may activate one more filter.
// The active count is read from the filter store so the invariant holds at
// activation time, not just at creation.
func (l *Ledger) CanActivateFilter(ctx context.Context, userID string) (bool, error) {
	count, err := l.filters.CountActive(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("count active filters: %w", err)
	}
	return count < l.Limits(userID).MaxFilters, nil
}

// Usage returns the current quota snapshot for the account surface.
func (l *Ledger) Usage(ctx context.Context, userID string) (alert.Usage, error) {
	count, err := l.filters.CountActive(ctx, userID)
	if err != nil {
		return alert.Usage{}, fmt.Errorf("count active filters: %w", err)
	}
	plan := l.resolver.PlanFor(userID)
	limits := l.limits(plan)
	now := l.clock.Now()

	l.mu.Lock()
	w := l.window(userID, now)
	checks, alerts := w.checks, w.alerts
	l.mu.Unlock()

	return alert.Usage{
		Plan:               plan,
		ActiveFilters:      count,
		MaxFilters:         limits.MaxFilters,
		ChecksThisMinute:   checks,
		MaxChecksPerMinute: limits.MaxChecksPerMinute,
		AlertsToday:        alerts,
		MaxAlertsPerDay:    limits.MaxAlertsPerDay,
	}, nil
}

// Limits resolves the caller's current plan limits.
func (l *Ledger) Limits(userID string) alert.PlanLimits {
	return l.limits(l.resolver.PlanFor(userID))
}

// window returns the user's counters, rolling them over when the minute
// bucket or calendar day has moved on. Callers must hold l.mu.
func (l *Ledger) window(userID string, now time.Time) *window {
	w, ok := l.users[userID]
	if !ok {
		w = &window{}
		l.users[userID] = w
	}
	bucket := now.Unix() / 60
	if w.minuteBucket != bucket {
		w.minuteBucket = bucket
		w.checks = 0
	}
	day := now.UTC().Format("2006-01-02")
	if w.day != day {
		w.day = day
		w.alerts = 0
	}
	return w
}
