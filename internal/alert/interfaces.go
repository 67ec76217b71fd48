package alert

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned by stores when a row with the same identity
// already exists.
var ErrConflict = errors.New("already exists")

// FilterStore persists filters and their scheduling fields.
type FilterStore interface {
	CreateFilter(ctx context.Context, f Filter) error
	GetFilter(ctx context.Context, id string) (Filter, error)
	UpdateFilter(ctx context.Context, f Filter) error
	DeleteFilter(ctx context.Context, id string) error
	ListFilters(ctx context.Context, userID string) ([]Filter, error)
	// ListDue returns active filters with NextDue <= now, ordered by
	// NextDue ascending with ties broken by filter ID.
	ListDue(ctx context.Context, now time.Time) ([]Filter, error)
	CountActive(ctx context.Context, userID string) (int, error)
	// UpdateSchedule writes the scheduler-owned fields only. It returns
	// ErrNotFound if the filter was deleted meanwhile.
	UpdateSchedule(ctx context.Context, id string, lastChecked, nextDue time.Time) error
}

// AlertStore persists alerts for history queries.
type AlertStore interface {
	CreateAlert(ctx context.Context, a Alert) error
	ListAlerts(ctx context.Context, userID string, limit, offset int) ([]Alert, error)
}

// DedupStore suppresses repeat alerts per (filter, listing) pair.
type DedupStore interface {
	// Seen reports whether the pair has already been alerted.
	Seen(ctx context.Context, filterID, listingID string) (bool, error)
	// MarkSeen records the pair and reports whether it was new. The
	// check-then-mark is atomic per pair so two overlapping jobs can
	// never both observe a listing as new.
	MarkSeen(ctx context.Context, filterID, listingID string, at time.Time) (bool, error)
	// Unmark releases a claimed pair after a failed delivery so the
	// listing alerts on the filter's next cycle. Unknown pairs are a
	// no-op.
	Unmark(ctx context.Context, filterID, listingID string) error
}

// Fetcher retrieves the current candidate set for a filter's criteria.
// Failures are transient: the job aborts and the filter retries on its
// next natural tick.
type Fetcher interface {
	Fetch(ctx context.Context, criteria Criteria) ([]Listing, error)
}

// QuotaLedger gates pipeline work by subscription plan. Reservations are
// atomic with respect to concurrent workers for the same user; a false
// return is a flow-control signal, not an error.
type QuotaLedger interface {
	TryReserveCheck(userID string) bool
	// ReleaseCheck returns one reserved check unit when the work it was
	// reserved for never started. Releasing into an already-rolled-over
	// window is a no-op.
	ReleaseCheck(userID string)
	TryReserveAlert(userID string) bool
	CanActivateFilter(ctx context.Context, userID string) (bool, error)
	Usage(ctx context.Context, userID string) (Usage, error)
	// Limits resolves the caller's current plan limits. Plan changes are
	// reflected on the next call, never retroactively.
	Limits(userID string) PlanLimits
}

// PlanResolver reports a user's current subscription tier. Plan state is
// maintained outside the pipeline and may change at any time.
type PlanResolver interface {
	PlanFor(userID string) PlanCode
}

// Queue provides enqueue/dequeue semantics for check jobs.
type Queue interface {
	Enqueue(ctx context.Context, job CheckJob) error
	Dequeue(ctx context.Context) (CheckJob, error)
}

// Dispatcher persists a new alert and attempts live delivery.
type Dispatcher interface {
	Deliver(ctx context.Context, a Alert) error
}

// Publisher pushes alert events to an external topic (Pub/Sub or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces filter and alert IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
