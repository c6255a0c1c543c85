package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// Operations replay strictly in enqueue order
func TestRetryQueueDrainsFIFO(t *testing.T) {
	q := NewRetryQueue(5)
	q.Enqueue(PendingOperation{Kind: OpInsert, Table: "deliveries", RecordID: 1})
	q.Enqueue(PendingOperation{Kind: OpUpdate, Table: "deliveries", RecordID: 2})
	q.Enqueue(PendingOperation{Kind: OpDelete, Table: "deliveries", RecordID: 3})

	var applied []uint
	err := q.Drain(context.Background(), func(ctx context.Context, op *PendingOperation) error {
		applied = append(applied, op.RecordID)
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, []uint{1, 2, 3}, applied)
	require.Equal(t, 0, q.Len())
}

// A failed head stops the drain; later operations are never attempted
func TestRetryQueueStopsOnFirstFailure(t *testing.T) {
	q := NewRetryQueue(5)
	q.Enqueue(PendingOperation{Kind: OpInsert, RecordID: 1})
	q.Enqueue(PendingOperation{Kind: OpUpdate, RecordID: 2})
	q.Enqueue(PendingOperation{Kind: OpDelete, RecordID: 3})

	boom := errors.New("remote unreachable")
	var attempted []uint
	err := q.Drain(context.Background(), func(ctx context.Context, op *PendingOperation) error {
		attempted = append(attempted, op.RecordID)
		if op.RecordID == 1 {
			return boom
		}
		return nil
	})

	require.ErrorIs(t, err, boom)
	require.Equal(t, []uint{1}, attempted)
	require.Equal(t, 3, q.Len())

	// The failed operation stays at the front for the next drain
	pending := q.Pending()
	require.Equal(t, uint(1), pending[0].RecordID)
	require.Equal(t, 1, pending[0].Attempts)
}

// After the attempt ceiling the head is dropped and the drain continues
func TestRetryQueueDropsAfterMaxAttempts(t *testing.T) {
	q := NewRetryQueue(2)
	q.Enqueue(PendingOperation{Kind: OpInsert, RecordID: 1})
	q.Enqueue(PendingOperation{Kind: OpUpdate, RecordID: 2})

	boom := errors.New("remote unreachable")
	fail := func(ctx context.Context, op *PendingOperation) error {
		if op.RecordID == 1 {
			return boom
		}
		return nil
	}

	// First drain: attempt 1 of 2, stops with the error
	require.ErrorIs(t, q.Drain(context.Background(), fail), boom)
	require.Equal(t, 2, q.Len())

	// Second drain: attempt 2 hits the ceiling, op 1 is dropped and op 2
	// replays successfully
	require.NoError(t, q.Drain(context.Background(), fail))
	require.Equal(t, 0, q.Len())
}

// A cancelled context stops the drain without consuming operations
func TestRetryQueueDrainHonorsContext(t *testing.T) {
	q := NewRetryQueue(5)
	q.Enqueue(PendingOperation{Kind: OpInsert, RecordID: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := q.Drain(ctx, func(ctx context.Context, op *PendingOperation) error {
		t.Fatal("apply should not run with a cancelled context")
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, q.Len())
}

// Enqueue assigns identity and timestamps
func TestRetryQueueEnqueueDefaults(t *testing.T) {
	q := NewRetryQueue(5)
	q.Enqueue(PendingOperation{Kind: OpInsert})

	pending := q.Pending()
	require.Len(t, pending, 1)
	require.NotEmpty(t, pending[0].ID)
	require.False(t, pending[0].EnqueuedAt.IsZero())
}
