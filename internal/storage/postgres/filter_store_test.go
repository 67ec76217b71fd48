package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/jbellec/marketwatch/internal/alert"
)

func floatPtr(v float64) *float64 { return &v }

func testFilter(now time.Time) alert.Filter {
	return alert.Filter{
		ID:     "f1",
		UserID: "u1",
		Name:   "sneaker watch",
		Criteria: alert.Criteria{
			Brand:    alert.StringCriterion{Value: "nike", Kind: alert.MatchExact},
			MaxPrice: floatPtr(50),
		},
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
		NextDue:   now,
	}
}

func TestFilterStoreCreateInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewFilterStore(mock, "marketwatch")
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0).UTC()
	f := testFilter(now)

	mock.ExpectExec("INSERT INTO marketwatch_filters").
		WithArgs(
			f.ID, f.UserID, f.Name, pgxmock.AnyArg(), f.Active,
			f.CreatedAt, f.UpdatedAt, (*time.Time)(nil), &f.NextDue,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateFilter(context.Background(), f))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterStoreGetMapsMissingRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewFilterStore(mock, "marketwatch")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM marketwatch_filters WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.GetFilter(context.Background(), "missing")
	require.ErrorIs(t, err, alert.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterStoreGetScansCriteria(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewFilterStore(mock, "marketwatch")
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0).UTC()
	criteria := []byte(`{"brand":{"value":"nike","kind":"exact"},"max_price":50}`)

	rows := pgxmock.NewRows([]string{
		"id", "user_id", "name", "criteria", "active",
		"created_at", "updated_at", "last_checked", "next_due",
	}).AddRow("f1", "u1", "sneaker watch", criteria, true, now, now, (*time.Time)(nil), &now)

	mock.ExpectQuery("SELECT (.+) FROM marketwatch_filters WHERE id").
		WithArgs("f1").
		WillReturnRows(rows)

	f, err := store.GetFilter(context.Background(), "f1")
	require.NoError(t, err)
	require.Equal(t, "nike", f.Criteria.Brand.Value)
	require.Equal(t, alert.MatchExact, f.Criteria.Brand.Kind)
	require.NotNil(t, f.Criteria.MaxPrice)
	require.Equal(t, 50.0, *f.Criteria.MaxPrice)
	require.True(t, f.LastChecked.IsZero())
	require.Equal(t, now, f.NextDue)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterStoreUpdateMissingRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewFilterStore(mock, "marketwatch")
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0).UTC()
	f := testFilter(now)

	mock.ExpectExec("UPDATE marketwatch_filters SET").
		WithArgs(f.ID, f.Name, pgxmock.AnyArg(), f.Active, f.UpdatedAt, &f.NextDue).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.ErrorIs(t, store.UpdateFilter(context.Background(), f), alert.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterStoreListDue(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewFilterStore(mock, "marketwatch")
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0).UTC()
	rows := pgxmock.NewRows([]string{
		"id", "user_id", "name", "criteria", "active",
		"created_at", "updated_at", "last_checked", "next_due",
	}).
		AddRow("f1", "u1", "first", []byte(`{}`), true, now, now, &now, &now).
		AddRow("f2", "u2", "second", []byte(`{}`), true, now, now, &now, &now)

	mock.ExpectQuery("SELECT (.+) FROM marketwatch_filters WHERE active AND next_due").
		WithArgs(now).
		WillReturnRows(rows)

	due, err := store.ListDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	require.Equal(t, "f1", due[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterStoreUpdateSchedule(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewFilterStore(mock, "marketwatch")
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0).UTC()
	next := now.Add(time.Minute)

	mock.ExpectExec("UPDATE marketwatch_filters SET last_checked").
		WithArgs("f1", now, next).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.UpdateSchedule(context.Background(), "f1", now, next))

	mock.ExpectExec("UPDATE marketwatch_filters SET last_checked").
		WithArgs("gone", now, next).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.ErrorIs(t, store.UpdateSchedule(context.Background(), "gone", now, next), alert.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTableNameRejectsInvalidPrefix(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewFilterStore(mock, "bad-prefix;drop")
	require.Error(t, err)
}
