package order

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/cache"
	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/entity"
	repo "github.com/Additional-Code/orderdesk/internal/repository/order"
	"github.com/Additional-Code/orderdesk/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/orderdesk/worker/order")

var ordersProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "orderdesk_orders_processed_total",
	Help: "Orders driven to a terminal status, by outcome.",
}, []string{"outcome"})

// Module registers the fulfillment processor with the worker engine.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(NewFulfiller, fx.As(new(worker.Processor))),
	),
)

// Fulfiller advances a dequeued order through the status lifecycle:
// pending -> processing, a simulated fulfillment delay, then a terminal
// completed or failed. The compare-and-set on status makes duplicate queue
// deliveries no-ops.
type Fulfiller struct {
	store         repo.Store
	cache         cache.Store
	logger        *zap.Logger
	delay         time.Duration
	retryMax      int
	retryInterval time.Duration
	decider       OutcomeDecider
	now           func() time.Time
}

// FulfillerParams collects dependencies via Fx.
type FulfillerParams struct {
	fx.In

	Store   repo.Store
	Cache   cache.Store
	Config  config.Config
	Logger  *zap.Logger
	Decider OutcomeDecider `optional:"true"`
}

// NewFulfiller builds the fulfillment processor from configuration. When no
// OutcomeDecider is supplied the configured success rate decides outcomes.
func NewFulfiller(p FulfillerParams) *Fulfiller {
	decider := p.Decider
	if decider == nil {
		decider = NewRateDecider(p.Config.Worker.SuccessRate)
	}
	return &Fulfiller{
		store:         p.Store,
		cache:         p.Cache,
		logger:        p.Logger,
		delay:         p.Config.Worker.ProcessingDelay,
		retryMax:      p.Config.Worker.WriteRetryMax,
		retryInterval: p.Config.Worker.WriteRetryInterval,
		decider:       decider,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Process handles one dequeued order id. It returns nil for everything the
// worker should not see again (missing order, duplicate delivery, exhausted
// retries escalated to failed) so the queue never loops on a poison message.
func (f *Fulfiller) Process(ctx context.Context, orderID string) error {
	ctx, span := workerTracer.Start(ctx, "worker.orders.fulfill", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer span.End()

	order, err := f.store.GetByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		// Malformed id or the order was removed out-of-band; drop it.
		f.logger.Warn("dequeued unknown order; discarding", zap.String("order_id", orderID))

		span.SetStatus(codes.Error, "order not found")
		return nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store lookup failed")
		return err
	}

	err = f.transition(ctx, orderID, entity.StatusPending, entity.StatusProcessing)
	if errors.Is(err, repo.ErrStatusConflict) {
		// Duplicate delivery or another worker won the race; skip without
		// touching updated_at.
		f.logger.Info("order already past pending; skipping",
			zap.String("order_id", orderID),
			zap.String("status", order.Status.String()),
		)
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		f.logger.Error("transition to processing failed after retries",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition to processing failed")
		return err
	}
	f.invalidateCache(ctx, orderID)

	f.logger.Info("fulfilling order",
		zap.String("order_id", orderID),
		zap.String("item_name", order.ItemName),
		zap.Int("quantity", order.Quantity),
		zap.Duration("delay", f.delay),
	)

	if err := f.wait(ctx); err != nil {
		// Shutdown mid-fulfillment leaves the order in processing; the
		// stale scan flags it after the threshold.
		return err
	}

	outcome := f.decider.Decide(order)
	if !entity.StatusProcessing.CanTransitionTo(outcome) {
		outcome = entity.StatusFailed
	}
	span.SetAttributes(attribute.String("order.outcome", outcome.String()))

	if err := f.writeBack(ctx, orderID, outcome); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write-back failed")
		return nil
	}
	f.invalidateCache(ctx, orderID)
	ordersProcessed.WithLabelValues(outcome.String()).Inc()

	if outcome == entity.StatusCompleted {
		f.logger.Info("order completed", zap.String("order_id", orderID))
	} else {
		f.logger.Warn("order failed during fulfillment", zap.String("order_id", orderID))
	}
	return nil
}

// transition performs one compare-and-set status move, retrying transient
// store errors with bounded exponential backoff. Conflict and not-found
// are definitive answers and never retried.
func (f *Fulfiller) transition(ctx context.Context, orderID string, from, to entity.Status) error {
	update := func() (struct{}, error) {
		err := f.store.UpdateStatus(ctx, orderID, from, to, f.now())
		if errors.Is(err, repo.ErrStatusConflict) || errors.Is(err, repo.ErrNotFound) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = f.retryInterval

	_, err := backoff.Retry(ctx, update,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(f.retryMax)+1),
	)
	return err
}

// writeBack moves the order from processing to the terminal outcome. When
// retries are exhausted it makes one best-effort attempt to mark the order
// failed and gives up; the worker loop must never crash or spin here.
func (f *Fulfiller) writeBack(ctx context.Context, orderID string, outcome entity.Status) error {
	err := f.transition(ctx, orderID, entity.StatusProcessing, outcome)
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrStatusConflict) || errors.Is(err, repo.ErrNotFound) {
		return nil
	}

	f.logger.Error("write-back retries exhausted; marking order failed",
		zap.String("order_id", orderID),
		zap.String("outcome", outcome.String()),
		zap.Error(err),
	)
	if ferr := f.store.UpdateStatus(ctx, orderID, entity.StatusProcessing, entity.StatusFailed, f.now()); ferr == nil {
		ordersProcessed.WithLabelValues(entity.StatusFailed.String()).Inc()
	}
	return err
}

func (f *Fulfiller) wait(ctx context.Context) error {
	if f.delay <= 0 {
		return nil
	}
	select {
	case <-time.After(f.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fulfiller) invalidateCache(ctx context.Context, orderID string) {
	if f.cache == nil {
		return
	}
	if err := f.cache.Delete(ctx, "orders:"+orderID); err != nil {
		f.logger.Warn("orders cache invalidation failed", zap.String("order_id", orderID), zap.Error(err))
	}
}
