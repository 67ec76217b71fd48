package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func TestDedupStoreMarkSeenFirstClaimWins(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDedupStore(mock, "marketwatch")
	require.NoError(t, err)

	at := time.Unix(1_700_000_000, 0).UTC()

	mock.ExpectExec("INSERT INTO marketwatch_dedup").
		WithArgs("f1", "l1", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	wasNew, err := store.MarkSeen(context.Background(), "f1", "l1", at)
	require.NoError(t, err)
	require.True(t, wasNew)

	// The conflict path inserts nothing and reports the pair as known.
	mock.ExpectExec("INSERT INTO marketwatch_dedup").
		WithArgs("f1", "l1", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	wasNew, err = store.MarkSeen(context.Background(), "f1", "l1", at)
	require.NoError(t, err)
	require.False(t, wasNew)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDedupStoreUnmark(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDedupStore(mock, "marketwatch")
	require.NoError(t, err)

	mock.ExpectExec("DELETE FROM marketwatch_dedup").
		WithArgs("f1", "l1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.Unmark(context.Background(), "f1", "l1"))

	// An unknown pair deletes zero rows without error.
	mock.ExpectExec("DELETE FROM marketwatch_dedup").
		WithArgs("f1", "l2").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, store.Unmark(context.Background(), "f1", "l2"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDedupStoreSeen(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDedupStore(mock, "marketwatch")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT 1 FROM marketwatch_dedup").
		WithArgs("f1", "l1").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	seen, err := store.Seen(context.Background(), "f1", "l1")
	require.NoError(t, err)
	require.True(t, seen)

	mock.ExpectQuery("SELECT 1 FROM marketwatch_dedup").
		WithArgs("f1", "l2").
		WillReturnError(pgx.ErrNoRows)

	seen, err = store.Seen(context.Background(), "f1", "l2")
	require.NoError(t, err)
	require.False(t, seen)
	require.NoError(t, mock.ExpectationsWereMet())
}
