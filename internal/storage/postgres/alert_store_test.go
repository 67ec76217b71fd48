package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/jbellec/marketwatch/internal/alert"
)

func TestAlertStoreCreateInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewAlertStore(mock, "marketwatch")
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0).UTC()
	a := alert.Alert{
		ID:        "a1",
		FilterID:  "f1",
		UserID:    "u1",
		ListingID: "l1",
		Title:     "Air Max 90",
		Price:     45,
		URL:       "https://m/l1",
		CreatedAt: now,
	}

	mock.ExpectExec("INSERT INTO marketwatch_alerts").
		WithArgs(a.ID, a.FilterID, a.UserID, a.ListingID, a.Title, a.Price, a.URL, a.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateAlert(context.Background(), a))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertStoreListAppliesPaging(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewAlertStore(mock, "marketwatch")
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0).UTC()
	rows := pgxmock.NewRows([]string{
		"id", "filter_id", "user_id", "listing_id", "title", "price", "url", "created_at",
	}).AddRow("a2", "f1", "u1", "l2", "Second", 30.0, "https://m/l2", now)

	mock.ExpectQuery("SELECT (.+) FROM marketwatch_alerts WHERE user_id").
		WithArgs("u1", 10, 5).
		WillReturnRows(rows)

	alerts, err := store.ListAlerts(context.Background(), "u1", 10, 5)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, "a2", alerts[0].ID)

	// A non-positive limit falls back to the default page size.
	mock.ExpectQuery("SELECT (.+) FROM marketwatch_alerts WHERE user_id").
		WithArgs("u1", 50, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "filter_id", "user_id", "listing_id", "title", "price", "url", "created_at",
		}))

	alerts, err = store.ListAlerts(context.Background(), "u1", 0, -3)
	require.NoError(t, err)
	require.Empty(t, alerts)
	require.NoError(t, mock.ExpectationsWereMet())
}
