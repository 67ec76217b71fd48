package postgres

import (
	"context"
	"fmt"

	"github.com/jbellec/marketwatch/internal/alert"
)

// AlertStore persists alerts in Postgres.
//
// Expected schema:
//
//	CREATE TABLE marketwatch_alerts (
//	    id UUID PRIMARY KEY,
//	    filter_id UUID NOT NULL,
//	    user_id UUID NOT NULL,
//	    listing_id TEXT NOT NULL,
//	    title TEXT NOT NULL,
//	    price DOUBLE PRECISION NOT NULL,
//	    url TEXT NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    UNIQUE (filter_id, listing_id)
//	);
type AlertStore struct {
	pool  Pool
	table string
}

// NewAlertStore constructs an AlertStore on an existing pool.
func NewAlertStore(pool Pool, tablePrefix string) (*AlertStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(tablePrefix, "alerts")
	if err != nil {
		return nil, err
	}
	return &AlertStore{pool: pool, table: table}, nil
}

// CreateAlert inserts an alert row. The unique (filter_id, listing_id)
// constraint backs the dedup invariant at the storage layer as well.
func (s *AlertStore) CreateAlert(ctx context.Context, a alert.Alert) error {
	query := fmt.Sprintf(`
INSERT INTO %s (id, filter_id, user_id, listing_id, title, price, url, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, s.table)
	if _, err := s.pool.Exec(ctx, query,
		a.ID, a.FilterID, a.UserID, a.ListingID, a.Title, a.Price, a.URL, a.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// ListAlerts returns a user's alerts ordered by creation time descending.
func (s *AlertStore) ListAlerts(ctx context.Context, userID string, limit, offset int) ([]alert.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`
SELECT id, filter_id, user_id, listing_id, title, price, url, created_at
FROM %s WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, s.table)
	rows, err := s.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []alert.Alert
	for rows.Next() {
		var a alert.Alert
		if err := rows.Scan(
			&a.ID, &a.FilterID, &a.UserID, &a.ListingID,
			&a.Title, &a.Price, &a.URL, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return out, nil
}
