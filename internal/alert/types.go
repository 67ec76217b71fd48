// Package alert defines core types shared across subsystems.
package alert

import (
	"time"
)

// PlanCode identifies a subscription tier.
type PlanCode string

// Known subscription tiers. Unknown codes fall back to PlanFree limits.
const (
	PlanFree  PlanCode = "free"
	PlanBasic PlanCode = "basic"
	PlanPro   PlanCode = "pro"
	PlanElite PlanCode = "elite"
)

// PlanLimits bounds a user's pipeline consumption.
type PlanLimits struct {
	MaxFilters         int `json:"max_filters" mapstructure:"max_filters"`
	MaxChecksPerMinute int `json:"max_checks_per_minute" mapstructure:"max_checks_per_minute"`
	MaxAlertsPerDay    int `json:"max_alerts_per_day" mapstructure:"max_alerts_per_day"`
}

// MatchKind selects how a string criterion is compared against a listing
// attribute. The kind is carried explicitly so matching semantics never
// depend on which field the criterion came from.
type MatchKind string

// Supported criterion kinds.
const (
	// MatchExact compares on case-insensitive value equality.
	MatchExact MatchKind = "exact"
	// MatchContains performs case-insensitive substring containment.
	MatchContains MatchKind = "contains"
)

// StringCriterion is one textual search constraint. A zero Value means the
// criterion is undefined and is skipped by the matcher.
type StringCriterion struct {
	Value string    `json:"value"`
	Kind  MatchKind `json:"kind"`
}

// Defined reports whether the criterion participates in matching.
func (c StringCriterion) Defined() bool {
	return c.Value != ""
}

// Criteria is the structured search specification attached to a Filter.
// Every defined criterion must hold for a listing to match (logical AND);
// undefined criteria are not evaluated. Price bounds are inclusive.
type Criteria struct {
	Brand     StringCriterion `json:"brand,omitzero"`
	Category  StringCriterion `json:"category,omitzero"`
	Size      StringCriterion `json:"size,omitzero"`
	Color     StringCriterion `json:"color,omitzero"`
	Condition StringCriterion `json:"condition,omitzero"`
	// Keywords is matched with MatchContains against the listing title
	// regardless of its Kind field.
	Keywords StringCriterion `json:"keywords,omitzero"`
	MinPrice *float64        `json:"min_price,omitempty"`
	MaxPrice *float64        `json:"max_price,omitempty"`
}

// Filter is a user-defined search specification plus scheduling state.
// Criteria and Active belong to the user; LastChecked and NextDue are
// owned by the scheduler.
type Filter struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Criteria    Criteria  `json:"criteria"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	LastChecked time.Time `json:"last_checked,omitzero"`
	NextDue     time.Time `json:"next_due,omitzero"`
}

// Listing is a candidate item retrieved from the marketplace for one fetch
// cycle. It is ephemeral: only listings that become Alerts outlive the job.
type Listing struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Price     float64   `json:"price"`
	Brand     string    `json:"brand,omitempty"`
	Category  string    `json:"category,omitempty"`
	Size      string    `json:"size,omitempty"`
	Color     string    `json:"color,omitempty"`
	Condition string    `json:"condition,omitempty"`
	FirstSeen time.Time `json:"first_seen,omitzero"`
}

// WellFormed reports whether the listing carries the fields the pipeline
// requires. Malformed candidates are excluded from matching, never fatal.
func (l Listing) WellFormed() bool {
	return l.ID != "" && l.Title != "" && l.Price > 0
}

// Alert records that a listing matched a filter for the first time.
// Immutable once created; exactly one Alert exists per (filter, listing).
type Alert struct {
	ID        string    `json:"id"`
	FilterID  string    `json:"filter_id"`
	UserID    string    `json:"user_id"`
	ListingID string    `json:"listing_id"`
	Title     string    `json:"title"`
	Price     float64   `json:"price"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// CheckJob is one unit of pipeline work: re-check a single filter.
// Criteria are snapshotted at enqueue time so a concurrent edit cannot
// change a job mid-flight.
type CheckJob struct {
	FilterID string
	UserID   string
	Criteria Criteria
	Due      time.Time
	Enqueued time.Time
}

// Usage is the quota snapshot returned to the account surface.
type Usage struct {
	Plan               PlanCode `json:"plan"`
	ActiveFilters      int      `json:"active_filters"`
	MaxFilters         int      `json:"max_filters"`
	ChecksThisMinute   int      `json:"checks_this_minute"`
	MaxChecksPerMinute int      `json:"max_checks_per_minute"`
	AlertsToday        int      `json:"alerts_today"`
	MaxAlertsPerDay    int      `json:"max_alerts_per_day"`
}
