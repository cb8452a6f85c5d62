package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_FIFO(t *testing.T) {
	q := NewMemoryQueue(8)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, id))
	}
	assert.Equal(t, 3, q.Len())

	consumeCtx, cancel := context.WithCancel(ctx)
	var got []string
	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Consume(consumeCtx, func(_ context.Context, orderID string) error {
			got = append(got, orderID)
			if len(got) == 3 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("consume did not finish")
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestMemoryQueue_EnqueueFullBuffer(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "a"))
	assert.Error(t, q.Enqueue(ctx, "b"))
}

func TestMemoryQueue_ConsumeStopsOnCancel(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := q.Consume(ctx, func(context.Context, string) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryQueue_HandlerErrorDropsMessage(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, "bad"))
	require.NoError(t, q.Enqueue(ctx, "good"))

	consumeCtx, cancel := context.WithCancel(ctx)
	var delivered []string
	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Consume(consumeCtx, func(_ context.Context, orderID string) error {
			delivered = append(delivered, orderID)
			if orderID == "bad" {
				return assert.AnError
			}
			cancel()
			return nil
		})
	}()

	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("consume did not finish")
	}
	// Both attempts are observed once; the failed one is not redelivered.
	assert.Equal(t, []string{"bad", "good"}, delivered)
	assert.Equal(t, 0, q.Len())
}
