package queue

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
)

// Handler processes a single dequeued order id.
type Handler func(ctx context.Context, orderID string) error

// Queue is the work channel carrying order ids from the API to the worker.
// Delivery is at-least-once; consumers must tolerate duplicates.
type Queue interface {
	Enqueue(ctx context.Context, orderID string) error
	Consume(ctx context.Context, handler Handler) error
	Ping(ctx context.Context) error
}

// Module wires the work queue.
var Module = fx.Provide(NewQueue)

// NewQueue builds a queue based on configuration.
func NewQueue(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Queue, error) {
	switch cfg.Queue.Driver {
	case "redis":
		return newRedisQueue(lc, cfg.Queue, logger), nil
	case "kafka":
		return newKafkaQueue(lc, cfg.Queue, logger)
	case "memory":
		logger.Info("using in-process memory queue", zap.Int("buffer", cfg.Queue.Buffer))

		return NewMemoryQueue(cfg.Queue.Buffer), nil
	case "noop":
		logger.Info("queue disabled; orders will stay pending")

		return noopQueue{}, nil
	default:
		return nil, fmt.Errorf("unsupported queue driver: %s", cfg.Queue.Driver)
	}
}

// noopQueue is used when the queue is disabled.
type noopQueue struct{}

func (noopQueue) Enqueue(context.Context, string) error { return nil }
func (noopQueue) Consume(ctx context.Context, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}
func (noopQueue) Ping(context.Context) error { return nil }
