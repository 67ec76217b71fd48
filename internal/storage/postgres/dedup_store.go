package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jbellec/marketwatch/internal/alert"
)

// DedupStore records alerted (filter, listing) pairs in Postgres. The
// primary-key insert makes the check-then-mark atomic at the database, so
// the invariant survives even if two jobs for one filter ever overlap.
//
// Expected schema:
//
//	CREATE TABLE marketwatch_dedup (
//	    filter_id UUID NOT NULL,
//	    listing_id TEXT NOT NULL,
//	    first_alerted_at TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (filter_id, listing_id)
//	);
type DedupStore struct {
	pool  Pool
	table string
}

// NewDedupStore constructs a DedupStore on an existing pool.
func NewDedupStore(pool Pool, tablePrefix string) (*DedupStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(tablePrefix, "dedup")
	if err != nil {
		return nil, err
	}
	return &DedupStore{pool: pool, table: table}, nil
}

// Seen reports whether the pair has already been alerted.
func (s *DedupStore) Seen(ctx context.Context, filterID, listingID string) (bool, error) {
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE filter_id = $1 AND listing_id = $2`, s.table)
	var one int
	err := s.pool.QueryRow(ctx, query, filterID, listingID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("select dedup record: %w", err)
	}
	return true, nil
}

// MarkSeen records the pair and reports whether it was new.
func (s *DedupStore) MarkSeen(ctx context.Context, filterID, listingID string, at time.Time) (bool, error) {
	query := fmt.Sprintf(`
INSERT INTO %s (filter_id, listing_id, first_alerted_at)
VALUES ($1,$2,$3)
ON CONFLICT (filter_id, listing_id) DO NOTHING`, s.table)
	tag, err := s.pool.Exec(ctx, query, filterID, listingID, at)
	if err != nil {
		return false, fmt.Errorf("insert dedup record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Unmark releases a claimed pair. Unknown pairs are a no-op.
func (s *DedupStore) Unmark(ctx context.Context, filterID, listingID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE filter_id = $1 AND listing_id = $2`, s.table)
	if _, err := s.pool.Exec(ctx, query, filterID, listingID); err != nil {
		return fmt.Errorf("delete dedup record: %w", err)
	}
	return nil
}

var _ alert.DedupStore = (*DedupStore)(nil)
