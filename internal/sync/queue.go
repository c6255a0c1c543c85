package sync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"example.com/mci/services/delivery/internal/fieldmap"
	"example.com/mci/services/delivery/internal/metrics"
)

// OperationKind defines the kind of a pending remote write
type OperationKind string

const (
	// OpInsert represents a pending insert
	OpInsert OperationKind = "INSERT"
	// OpUpdate represents a pending update
	OpUpdate OperationKind = "UPDATE"
	// OpDelete represents a pending delete
	OpDelete OperationKind = "DELETE"
)

// PendingOperation is a remote write that failed for connectivity reasons
// and is waiting to be replayed.
type PendingOperation struct {
	ID         string            `json:"id"`
	Kind       OperationKind     `json:"kind"`
	Table      string            `json:"table"`
	OwnerID    string            `json:"owner_id"`
	RecordID   uint              `json:"record_id,omitempty"`
	Payload    fieldmap.Document `json:"payload,omitempty"`
	Attempts   int               `json:"attempts"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

// RetryQueue is an ordered queue of pending remote writes, drained strictly
// FIFO when connectivity returns. A failed head stops the drain so later
// operations never jump ahead of earlier ones. Each operation gets a bounded
// number of attempts; beyond that it is dropped with an error log rather
// than blocking the queue forever.
type RetryQueue struct {
	mu          sync.Mutex
	ops         []*PendingOperation
	maxAttempts int
}

// NewRetryQueue creates a retry queue with the given per-operation attempt
// ceiling
func NewRetryQueue(maxAttempts int) *RetryQueue {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &RetryQueue{maxAttempts: maxAttempts}
}

// Enqueue appends a pending operation to the back of the queue
func (q *RetryQueue) Enqueue(op PendingOperation) {
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	if op.EnqueuedAt.IsZero() {
		op.EnqueuedAt = time.Now()
	}

	q.mu.Lock()
	q.ops = append(q.ops, &op)
	depth := len(q.ops)
	q.mu.Unlock()

	collector := metrics.GetMetricsCollector()
	collector.IncrementCounter(metrics.CounterOpsQueued)
	collector.SetPendingOperations(depth)

	logrus.WithFields(logrus.Fields{
		"kind":  op.Kind,
		"table": op.Table,
		"depth": depth,
	}).Info("Queued remote write for replay")
}

// Len returns the queue depth
func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Pending returns a copy of the queued operations, front first
func (q *RetryQueue) Pending() []PendingOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]PendingOperation, len(q.ops))
	for i, op := range q.ops {
		out[i] = *op
	}
	return out
}

// Drain replays queued operations in order through apply. It stops at the
// first failure, leaving the failed operation at the front for the next
// drain, unless that operation has exhausted its attempts, in which case it
// is dropped and the drain continues.
func (q *RetryQueue) Drain(ctx context.Context, apply func(context.Context, *PendingOperation) error) error {
	collector := metrics.GetMetricsCollector()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		op := q.peek()
		if op == nil {
			collector.SetPendingOperations(0)
			return nil
		}

		err := apply(ctx, op)
		if err == nil {
			q.pop(op.ID)
			collector.IncrementCounter(metrics.CounterOpsReplayed)
			collector.SetPendingOperations(q.Len())
			continue
		}

		op.Attempts++
		if op.Attempts >= q.maxAttempts {
			q.pop(op.ID)
			collector.IncrementCounter(metrics.CounterOpsDropped)
			collector.SetPendingOperations(q.Len())
			logrus.WithError(err).WithFields(logrus.Fields{
				"kind":     op.Kind,
				"table":    op.Table,
				"attempts": op.Attempts,
			}).Error("Dropping pending operation after repeated failures")
			continue
		}

		collector.SetPendingOperations(q.Len())
		return err
	}
}

func (q *RetryQueue) peek() *PendingOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ops) == 0 {
		return nil
	}
	return q.ops[0]
}

// pop removes the head if it still carries the given id. The id check keeps
// a concurrent Enqueue from being dropped by mistake.
func (q *RetryQueue) pop(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ops) > 0 && q.ops[0].ID == id {
		q.ops = q.ops[1:]
	}
}
