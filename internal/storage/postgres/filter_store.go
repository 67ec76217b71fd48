package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jbellec/marketwatch/internal/alert"
)

// FilterStore persists filters in Postgres.
//
// Expected schema:
//
//	CREATE TABLE marketwatch_filters (
//	    id UUID PRIMARY KEY,
//	    user_id UUID NOT NULL,
//	    name TEXT NOT NULL,
//	    criteria JSONB NOT NULL,
//	    active BOOLEAN NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL,
//	    last_checked TIMESTAMPTZ,
//	    next_due TIMESTAMPTZ
//	);
type FilterStore struct {
	pool  Pool
	table string
}

// NewFilterStore constructs a FilterStore on an existing pool.
func NewFilterStore(pool Pool, tablePrefix string) (*FilterStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(tablePrefix, "filters")
	if err != nil {
		return nil, err
	}
	return &FilterStore{pool: pool, table: table}, nil
}

// CreateFilter inserts a filter row.
func (s *FilterStore) CreateFilter(ctx context.Context, f alert.Filter) error {
	criteria, err := json.Marshal(f.Criteria)
	if err != nil {
		return fmt.Errorf("marshal criteria: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, user_id, name, criteria, active, created_at, updated_at, last_checked, next_due)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, s.table)
	if _, err := s.pool.Exec(ctx, query,
		f.ID, f.UserID, f.Name, criteria, f.Active,
		f.CreatedAt, f.UpdatedAt, nullTime(f.LastChecked), nullTime(f.NextDue),
	); err != nil {
		return fmt.Errorf("insert filter: %w", err)
	}
	return nil
}

// GetFilter fetches a filter by ID.
func (s *FilterStore) GetFilter(ctx context.Context, id string) (alert.Filter, error) {
	query := fmt.Sprintf(`
SELECT id, user_id, name, criteria, active, created_at, updated_at, last_checked, next_due
FROM %s WHERE id = $1`, s.table)
	f, err := scanFilter(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return alert.Filter{}, alert.ErrNotFound
		}
		return alert.Filter{}, fmt.Errorf("select filter: %w", err)
	}
	return f, nil
}

// UpdateFilter replaces the user-owned fields of a filter row.
func (s *FilterStore) UpdateFilter(ctx context.Context, f alert.Filter) error {
	criteria, err := json.Marshal(f.Criteria)
	if err != nil {
		return fmt.Errorf("marshal criteria: %w", err)
	}
	query := fmt.Sprintf(`
UPDATE %s SET name = $2, criteria = $3, active = $4, updated_at = $5, next_due = $6
WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query,
		f.ID, f.Name, criteria, f.Active, f.UpdatedAt, nullTime(f.NextDue),
	)
	if err != nil {
		return fmt.Errorf("update filter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return alert.ErrNotFound
	}
	return nil
}

// DeleteFilter removes a filter row.
func (s *FilterStore) DeleteFilter(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete filter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return alert.ErrNotFound
	}
	return nil
}

// ListFilters returns a user's filters, newest first.
func (s *FilterStore) ListFilters(ctx context.Context, userID string) ([]alert.Filter, error) {
	query := fmt.Sprintf(`
SELECT id, user_id, name, criteria, active, created_at, updated_at, last_checked, next_due
FROM %s WHERE user_id = $1 ORDER BY created_at DESC, id`, s.table)
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list filters: %w", err)
	}
	defer rows.Close()
	return collectFilters(rows)
}

// ListDue returns active filters due at or before now, FIFO by due time
// with ties broken by filter ID.
func (s *FilterStore) ListDue(ctx context.Context, now time.Time) ([]alert.Filter, error) {
	query := fmt.Sprintf(`
SELECT id, user_id, name, criteria, active, created_at, updated_at, last_checked, next_due
FROM %s WHERE active AND next_due <= $1 ORDER BY next_due, id`, s.table)
	rows, err := s.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list due filters: %w", err)
	}
	defer rows.Close()
	return collectFilters(rows)
}

// CountActive counts a user's active filters.
func (s *FilterStore) CountActive(ctx context.Context, userID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE user_id = $1 AND active`, s.table)
	var count int
	if err := s.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active filters: %w", err)
	}
	return count, nil
}

// UpdateSchedule writes the scheduler-owned timestamps only.
func (s *FilterStore) UpdateSchedule(ctx context.Context, id string, lastChecked, nextDue time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET last_checked = $2, next_due = $3 WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, id, lastChecked, nextDue)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return alert.ErrNotFound
	}
	return nil
}

func scanFilter(row pgx.Row) (alert.Filter, error) {
	var (
		f           alert.Filter
		criteria    []byte
		lastChecked *time.Time
		nextDue     *time.Time
	)
	if err := row.Scan(
		&f.ID, &f.UserID, &f.Name, &criteria, &f.Active,
		&f.CreatedAt, &f.UpdatedAt, &lastChecked, &nextDue,
	); err != nil {
		return alert.Filter{}, err
	}
	if err := json.Unmarshal(criteria, &f.Criteria); err != nil {
		return alert.Filter{}, fmt.Errorf("unmarshal criteria: %w", err)
	}
	if lastChecked != nil {
		f.LastChecked = *lastChecked
	}
	if nextDue != nil {
		f.NextDue = *nextDue
	}
	return f, nil
}

func collectFilters(rows pgx.Rows) ([]alert.Filter, error) {
	var out []alert.Filter
	for rows.Next() {
		f, err := scanFilter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan filter: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate filters: %w", err)
	}
	return out, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
