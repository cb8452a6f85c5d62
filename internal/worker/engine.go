package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/queue"
)

// Processor handles a single dequeued order id. A returned error means the
// message was not fully handled; whether it is redelivered is up to the
// queue driver.
type Processor interface {
	Process(ctx context.Context, orderID string) error
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Queue     queue.Queue
	Logger    *zap.Logger
	Config    config.Config
	Processor Processor
}

// Engine orchestrates background queue consumption. The reference setup
// runs a single consumer; concurrency above one relies on the store's
// compare-and-set status guard to stay safe.
type Engine struct {
	queue     queue.Queue
	logger    *zap.Logger
	cfg       config.Config
	processor Processor
	cancel    context.CancelFunc
	wg        *sync.WaitGroup
}

// NewEngine constructs the worker Engine.
func NewEngine(p Params) *Engine {
	return &Engine{
		queue:     p.Queue,
		logger:    p.Logger,
		cfg:       p.Config,
		processor: p.Processor,
	}
}

// Module wires the engine into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.start,
			OnStop:  engine.stop,
		})
	}),
)

func (e *Engine) start(ctx context.Context) error {
	if !e.cfg.Worker.Enabled {
		e.logger.Info("fulfillment worker disabled")

		return nil
	}

	concurrency := e.cfg.Worker.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg = &sync.WaitGroup{}

	for i := 0; i < concurrency; i++ {
		workerID := i
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.consumeLoop(runCtx, workerID)
		}()
	}

	e.logger.Info("fulfillment worker started", zap.Int("consumers", concurrency))

	return nil
}

func (e *Engine) stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	done := make(chan struct{})
	go func() {
		if e.wg != nil {
			e.wg.Wait()
		}
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		e.logger.Info("fulfillment worker stopped")

		return nil
	}
}

func (e *Engine) consumeLoop(ctx context.Context, workerID int) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		err := e.queue.Consume(ctx, func(msgCtx context.Context, orderID string) error {
			e.logger.Debug("processing order", zap.String("order_id", orderID), zap.Int("consumer", workerID))

			return e.processor.Process(msgCtx, orderID)
		})

		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		e.logger.Error("consume loop error", zap.Error(err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}

		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
