package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jbellec/marketwatch/internal/alert"
)

func TestFilterStore_CRUD(t *testing.T) {
	t.Parallel()

	store := NewFilterStore()
	ctx := context.Background()
	f := alert.Filter{ID: "f1", UserID: "user-1", Name: "watch", Active: true}

	require.NoError(t, store.CreateFilter(ctx, f))
	require.ErrorIs(t, store.CreateFilter(ctx, f), alert.ErrConflict)

	got, err := store.GetFilter(ctx, "f1")
	require.NoError(t, err)
	require.Equal(t, "watch", got.Name)

	got.Name = "renamed"
	require.NoError(t, store.UpdateFilter(ctx, got))
	got, err = store.GetFilter(ctx, "f1")
	require.NoError(t, err)
	require.Equal(t, "renamed", got.Name)

	require.NoError(t, store.DeleteFilter(ctx, "f1"))
	_, err = store.GetFilter(ctx, "f1")
	require.ErrorIs(t, err, alert.ErrNotFound)
	require.ErrorIs(t, store.DeleteFilter(ctx, "f1"), alert.ErrNotFound)
	require.ErrorIs(t, store.UpdateFilter(ctx, f), alert.ErrNotFound)
}

func TestFilterStore_ListDueOrdering(t *testing.T) {
	t.Parallel()

	store := NewFilterStore()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	require.NoError(t, store.CreateFilter(ctx, alert.Filter{
		ID: "b", UserID: "u", Active: true, NextDue: now.Add(-time.Minute),
	}))
	require.NoError(t, store.CreateFilter(ctx, alert.Filter{
		ID: "a", UserID: "u", Active: true, NextDue: now.Add(-time.Minute),
	}))
	require.NoError(t, store.CreateFilter(ctx, alert.Filter{
		ID: "c", UserID: "u", Active: true, NextDue: now.Add(-time.Hour),
	}))
	require.NoError(t, store.CreateFilter(ctx, alert.Filter{
		ID: "later", UserID: "u", Active: true, NextDue: now.Add(time.Hour),
	}))
	require.NoError(t, store.CreateFilter(ctx, alert.Filter{
		ID: "inactive", UserID: "u", Active: false, NextDue: now.Add(-time.Hour),
	}))

	due, err := store.ListDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 3)
	require.Equal(t, "c", due[0].ID)
	require.Equal(t, "a", due[1].ID)
	require.Equal(t, "b", due[2].ID)
}

func TestFilterStore_CountActive(t *testing.T) {
	t.Parallel()

	store := NewFilterStore()
	ctx := context.Background()

	require.NoError(t, store.CreateFilter(ctx, alert.Filter{ID: "f1", UserID: "u1", Active: true}))
	require.NoError(t, store.CreateFilter(ctx, alert.Filter{ID: "f2", UserID: "u1", Active: false}))
	require.NoError(t, store.CreateFilter(ctx, alert.Filter{ID: "f3", UserID: "u2", Active: true}))

	count, err := store.CountActive(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestFilterStore_UpdateSchedulePreservesUserFields(t *testing.T) {
	t.Parallel()

	store := NewFilterStore()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	require.NoError(t, store.CreateFilter(ctx, alert.Filter{
		ID: "f1", UserID: "u1", Name: "watch", Active: true,
	}))
	require.NoError(t, store.UpdateSchedule(ctx, "f1", now, now.Add(time.Minute)))

	f, err := store.GetFilter(ctx, "f1")
	require.NoError(t, err)
	require.Equal(t, "watch", f.Name)
	require.Equal(t, now, f.LastChecked)
	require.Equal(t, now.Add(time.Minute), f.NextDue)

	require.ErrorIs(t, store.UpdateSchedule(ctx, "missing", now, now), alert.ErrNotFound)
}
