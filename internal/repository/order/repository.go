package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/orderdesk/internal/database"
	"github.com/Additional-Code/orderdesk/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/orderdesk/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// ErrStatusConflict is returned when a conditional status update finds the
// order in a different state than expected. This is how duplicate queue
// deliveries are detected.
var ErrStatusConflict = errors.New("order status conflict")

// Store is the persistence contract consumed by the service and the worker.
// *Repository is the bun-backed implementation; tests substitute in-memory
// fakes.
type Store interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id string) (*entity.Order, error)
	List(ctx context.Context, status *entity.Status, limit int) ([]entity.Order, error)
	CountByStatus(ctx context.Context) (map[entity.Status]int, error)
	UpdateStatus(ctx context.Context, id string, from, to entity.Status, at time.Time) error
	FindStaleProcessing(ctx context.Context, olderThan time.Time) ([]entity.Order, error)
	Ping(ctx context.Context) error
}

// Repository encapsulates read/write access for orders.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

var _ Store = (*Repository)(nil)

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new order using the write connection.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.id", order.ID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an order by primary key using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// List returns orders in creation order, optionally restricted to one status.
func (r *Repository) List(ctx context.Context, status *entity.Status, limit int) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	var orders []entity.Order
	q := r.reader.NewSelect().Model(&orders).Order("created_at ASC")
	if status != nil {
		span.SetAttributes(attribute.String("order.status", status.String()))
		q = q.Where("status = ?", *status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// CountByStatus aggregates order counts per status.
func (r *Repository) CountByStatus(ctx context.Context) (map[entity.Status]int, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CountByStatus")
	defer span.End()

	var rows []struct {
		Status entity.Status `bun:"status"`
		Count  int           `bun:"count"`
	}
	err := r.reader.NewSelect().
		Model((*entity.Order)(nil)).
		Column("status").
		ColumnExpr("count(*) AS count").
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		return nil, err
	}

	counts := make(map[entity.Status]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// UpdateStatus moves an order from one status to another with an atomic
// compare-and-set on the current status. ErrStatusConflict means the order
// is no longer in the expected state; ErrNotFound means no such order.
func (r *Repository) UpdateStatus(ctx context.Context, id string, from, to entity.Status, at time.Time) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status.from", from.String()),
		attribute.String("order.status.to", to.String()),
	))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return err
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, id); errors.Is(err, ErrNotFound) {
			span.SetStatus(codes.Error, "not found")
			return ErrNotFound
		}
		span.SetStatus(codes.Error, "status conflict")
		return ErrStatusConflict
	}
	return nil
}

// FindStaleProcessing returns orders stuck in processing since before olderThan.
func (r *Repository) FindStaleProcessing(ctx context.Context, olderThan time.Time) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.FindStaleProcessing")
	defer span.End()

	var orders []entity.Order
	err := r.reader.NewSelect().
		Model(&orders).
		Where("status = ?", entity.StatusProcessing).
		Where("updated_at < ?", olderThan).
		Order("updated_at ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// Ping probes the write connection for health checks.
func (r *Repository) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.writer.DB.PingContext(pingCtx)
}
