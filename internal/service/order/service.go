package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
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
	"github.com/Additional-Code/orderdesk/internal/dto"
	"github.com/Additional-Code/orderdesk/internal/entity"
	"github.com/Additional-Code/orderdesk/internal/queue"
	repo "github.com/Additional-Code/orderdesk/internal/repository/order"
	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/orderdesk/service/order")

var ordersCreated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "orderdesk_orders_created_total",
	Help: "Orders accepted and stored as pending.",
})

// DefaultListLimit bounds unfiltered listings for the polling dashboard.
const DefaultListLimit = 100

// Service encapsulates business logic around orders.
type Service struct {
	store    repo.Store
	queue    queue.Queue
	cache    cache.Store
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store  repo.Store
	Queue  queue.Queue
	Cache  cache.Store
	Config config.Config
	Logger *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		store:    p.Store,
		queue:    p.Queue,
		cache:    p.Cache,
		cacheTTL: p.Config.Cache.DefaultTTL,
		logger:   p.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create validates the input, stores a pending order, then enqueues its id
// for the fulfillment worker. The store write always happens before the
// enqueue so the consumer can look the order up. An enqueue failure leaves
// the order stored and pending; it is logged, not returned as a failure.
func (s *Service) Create(ctx context.Context, input CreateOrderInput) (*entity.Order, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(
		attribute.String("order.item_name", input.ItemName),
		attribute.Int("order.quantity", input.Quantity),
	))
	defer span.End()

	now := s.now()
	order := &entity.Order{
		ID:        uuid.NewString(),
		ItemName:  input.ItemName,
		Quantity:  input.Quantity,
		Status:    entity.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store error")
		return nil, errorbank.Unavailable("order store unavailable", errorbank.WithCause(err))
	}
	ordersCreated.Inc()

	// No cache warm here; the first Get populates it.

	if err := s.queue.Enqueue(ctx, order.ID); err != nil {
		// The order stays pending and remains visible to list and stats;
		// nothing requeues it automatically.
		span.RecordError(err)
		s.logger.Error("failed to enqueue order", zap.String("id", order.ID), zap.Error(err))
	} else {
		s.logger.Info("order enqueued", zap.String("id", order.ID))
	}

	return order, nil
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.String("id", id), zap.Error(err))
	}

	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "store error")
		return nil, errorbank.Unavailable("order store unavailable", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.String("id", id), zap.Error(err))
	}

	return order, nil
}

// List returns orders in creation order, optionally filtered to one status.
// An empty statusFilter means all orders; limit <= 0 falls back to the
// default dashboard page size.
func (s *Service) List(ctx context.Context, statusFilter string, limit int) ([]entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	var status *entity.Status
	if statusFilter != "" {
		parsed, err := entity.ParseStatus(statusFilter)
		if err != nil {
			return nil, errorbank.BadRequest("invalid status filter", errorbank.WithDetail("status", statusFilter))
		}
		status = &parsed
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	orders, err := s.store.List(ctx, status, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store error")
		return nil, errorbank.Unavailable("order store unavailable", errorbank.WithCause(err))
	}
	return orders, nil
}

// Stats returns per-status order counts. The counts are not a consistent
// snapshot; a concurrent transition may or may not be reflected.
func (s *Service) Stats(ctx context.Context) (dto.StatsResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Stats")
	defer span.End()

	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store error")
		return dto.StatsResponse{}, errorbank.Unavailable("order store unavailable", errorbank.WithCause(err))
	}

	stats := dto.StatsResponse{
		Pending:    counts[entity.StatusPending],
		Processing: counts[entity.StatusProcessing],
		Completed:  counts[entity.StatusCompleted],
		Failed:     counts[entity.StatusFailed],
	}
	stats.Total = stats.Pending + stats.Processing + stats.Completed + stats.Failed
	return stats, nil
}

// Health probes the store and the queue independently. It reports, never
// fails: an unreachable dependency shows up as unhealthy in the response.
func (s *Service) Health(ctx context.Context) dto.HealthResponse {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Health")
	defer span.End()

	health := dto.HealthResponse{
		API:   dto.HealthStatusHealthy,
		Store: dto.HealthStatusHealthy,
		Queue: dto.HealthStatusHealthy,
	}

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("store health probe failed", zap.Error(err))
		health.Store = dto.HealthStatusUnhealthy
	}
	if err := s.queue.Ping(ctx); err != nil {
		s.logger.Warn("queue health probe failed", zap.Error(err))
		health.Queue = dto.HealthStatusUnhealthy
	}
	return health
}

func (s *Service) cacheKey(id string) string {
	return fmt.Sprintf("orders:%s", id)
}

func (s *Service) getFromCache(ctx context.Context, id string) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(order.ID), bytes, s.cacheTTL)
}
