package queue

import (
	"context"
	"errors"
)

// MemoryQueue is a buffered in-process FIFO. It backs the "memory" driver
// for single-binary demo runs and substitutes for external brokers in tests.
type MemoryQueue struct {
	ch chan string
}

// NewMemoryQueue builds a memory queue with the given buffer capacity.
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 1
	}
	return &MemoryQueue{ch: make(chan string, buffer)}
}

// Enqueue appends an order id, failing fast when the buffer is full.
func (q *MemoryQueue) Enqueue(ctx context.Context, orderID string) error {
	select {
	case q.ch <- orderID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.New("memory queue is full")
	}
}

// Consume blocks draining ids until the context is cancelled.
func (q *MemoryQueue) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case orderID := <-q.ch:
			if err := handler(ctx, orderID); err != nil {
				// Message is dropped; the processor owns its own retries.
				continue
			}
		}
	}
}

// Ping always succeeds for the in-process queue.
func (q *MemoryQueue) Ping(context.Context) error { return nil }

// Len reports the number of buffered ids.
func (q *MemoryQueue) Len() int { return len(q.ch) }
