package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jbellec/marketwatch/internal/alert"
)

func TestQueue_EnqueueDequeueFIFO(t *testing.T) {
	t.Parallel()

	q := NewQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, alert.CheckJob{FilterID: "f1"}))
	require.NoError(t, q.Enqueue(ctx, alert.CheckJob{FilterID: "f2"}))

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, "f1", job.FilterID)

	job, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, "f2", job.FilterID)
}

func TestQueue_EnqueueRespectsContext(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, alert.CheckJob{FilterID: "f1"}))

	full, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := q.Enqueue(full, alert.CheckJob{FilterID: "f2"})
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_DequeueRespectsContext(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	q.Close()
	q.Close()

	_, err := q.Dequeue(context.Background())
	require.EqualError(t, err, "queue closed")
}
