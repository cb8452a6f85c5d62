package order

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/entity"
	repo "github.com/Additional-Code/orderdesk/internal/repository/order"
)

var errStoreOffline = errors.New("store offline")

// stubStore applies compare-and-set transitions in memory and can inject a
// number of transient failures per target status.
type stubStore struct {
	mu        sync.Mutex
	orders    map[string]*entity.Order
	writeErrs map[entity.Status]int
	attempts  []entity.Status
}

func newStubStore(orders ...*entity.Order) *stubStore {
	s := &stubStore{orders: map[string]*entity.Order{}, writeErrs: map[entity.Status]int{}}
	for _, order := range orders {
		cp := *order
		s.orders[order.ID] = &cp
	}
	return s
}

func (s *stubStore) Create(_ context.Context, order *entity.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *order
	s.orders[order.ID] = &cp
	return nil
}

func (s *stubStore) GetByID(_ context.Context, id string) (*entity.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *order
	return &cp, nil
}

func (s *stubStore) List(context.Context, *entity.Status, int) ([]entity.Order, error) {
	return nil, nil
}

func (s *stubStore) CountByStatus(context.Context) (map[entity.Status]int, error) {
	return nil, nil
}

func (s *stubStore) UpdateStatus(_ context.Context, id string, from, to entity.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, to)
	if s.writeErrs[to] > 0 {
		s.writeErrs[to]--
		return errStoreOffline
	}
	order, ok := s.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	if order.Status != from {
		return repo.ErrStatusConflict
	}
	order.Status = to
	order.UpdatedAt = at
	return nil
}

func (s *stubStore) FindStaleProcessing(context.Context, time.Time) ([]entity.Order, error) {
	return nil, nil
}

func (s *stubStore) Ping(context.Context) error { return nil }

func (s *stubStore) status(id string) entity.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id].Status
}

func (s *stubStore) attemptCount(to entity.Status) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, target := range s.attempts {
		if target == to {
			n++
		}
	}
	return n
}

func pendingOrder(id string) *entity.Order {
	now := time.Now().UTC().Add(-time.Minute)
	return &entity.Order{
		ID:        id,
		ItemName:  "Laptop",
		Quantity:  2,
		Status:    entity.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newTestFulfiller(store *stubStore, outcome entity.Status) *Fulfiller {
	cfg := config.Config{}
	cfg.Worker.ProcessingDelay = 0
	cfg.Worker.WriteRetryMax = 3
	cfg.Worker.WriteRetryInterval = time.Millisecond
	return NewFulfiller(FulfillerParams{
		Store:   store,
		Cache:   nil,
		Config:  cfg,
		Logger:  zap.NewNop(),
		Decider: FixedDecider{Outcome: outcome},
	})
}

func TestFulfiller_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("drives a pending order to completed", func(t *testing.T) {
		order := pendingOrder("ord-1")
		store := newStubStore(order)
		f := newTestFulfiller(store, entity.StatusCompleted)

		require.NoError(t, f.Process(ctx, "ord-1"))
		assert.Equal(t, entity.StatusCompleted, store.status("ord-1"))

		got, err := store.GetByID(ctx, "ord-1")
		require.NoError(t, err)
		assert.True(t, got.UpdatedAt.After(order.UpdatedAt))
	})

	t.Run("drives a pending order to failed on an unlucky outcome", func(t *testing.T) {
		store := newStubStore(pendingOrder("ord-2"))
		f := newTestFulfiller(store, entity.StatusFailed)

		require.NoError(t, f.Process(ctx, "ord-2"))
		assert.Equal(t, entity.StatusFailed, store.status("ord-2"))
	})

	t.Run("discards ids that match no order", func(t *testing.T) {
		store := newStubStore()
		f := newTestFulfiller(store, entity.StatusCompleted)

		require.NoError(t, f.Process(ctx, "no-such-order"))
		assert.Empty(t, store.attempts, "no transitions should be attempted")
	})

	t.Run("skips duplicate deliveries without touching the order", func(t *testing.T) {
		done := pendingOrder("ord-3")
		done.Status = entity.StatusCompleted
		store := newStubStore(done)
		f := newTestFulfiller(store, entity.StatusFailed)

		require.NoError(t, f.Process(ctx, "ord-3"))
		assert.Equal(t, entity.StatusCompleted, store.status("ord-3"))

		got, err := store.GetByID(ctx, "ord-3")
		require.NoError(t, err)
		assert.True(t, got.UpdatedAt.Equal(done.UpdatedAt), "duplicate delivery must not bump updated_at")
	})

	t.Run("retries a transient failure claiming the order", func(t *testing.T) {
		store := newStubStore(pendingOrder("ord-8"))
		store.writeErrs[entity.StatusProcessing] = 1
		f := newTestFulfiller(store, entity.StatusCompleted)

		require.NoError(t, f.Process(ctx, "ord-8"))
		assert.Equal(t, entity.StatusCompleted, store.status("ord-8"))
		assert.Equal(t, 2, store.attemptCount(entity.StatusProcessing))
	})

	t.Run("surfaces the error when the claim never succeeds", func(t *testing.T) {
		store := newStubStore(pendingOrder("ord-9"))
		store.writeErrs[entity.StatusProcessing] = 100
		f := newTestFulfiller(store, entity.StatusCompleted)

		err := f.Process(ctx, "ord-9")
		require.Error(t, err)
		assert.Equal(t, entity.StatusPending, store.status("ord-9"))
		assert.Equal(t, 4, store.attemptCount(entity.StatusProcessing), "retry max 3 means 4 tries")
	})

	t.Run("retries a transient write-back failure", func(t *testing.T) {
		store := newStubStore(pendingOrder("ord-4"))
		store.writeErrs[entity.StatusCompleted] = 2
		f := newTestFulfiller(store, entity.StatusCompleted)

		require.NoError(t, f.Process(ctx, "ord-4"))
		assert.Equal(t, entity.StatusCompleted, store.status("ord-4"))
		assert.Equal(t, 3, store.attemptCount(entity.StatusCompleted))
	})

	t.Run("marks the order failed when write-back retries run out", func(t *testing.T) {
		store := newStubStore(pendingOrder("ord-5"))
		store.writeErrs[entity.StatusCompleted] = 100
		f := newTestFulfiller(store, entity.StatusCompleted)

		require.NoError(t, f.Process(ctx, "ord-5"), "exhausted retries must not bounce the message")
		assert.Equal(t, entity.StatusFailed, store.status("ord-5"))
		assert.Equal(t, 4, store.attemptCount(entity.StatusCompleted), "retry max 3 means 4 tries")
	})

	t.Run("coerces a nonsensical outcome to failed", func(t *testing.T) {
		store := newStubStore(pendingOrder("ord-6"))
		f := newTestFulfiller(store, entity.StatusPending)

		require.NoError(t, f.Process(ctx, "ord-6"))
		assert.Equal(t, entity.StatusFailed, store.status("ord-6"))
	})
}

func TestRateDecider(t *testing.T) {
	order := pendingOrder("ord-7")

	t.Run("rate one always completes", func(t *testing.T) {
		d := NewRateDeciderWithSource(1, rand.NewSource(42))
		for i := 0; i < 50; i++ {
			assert.Equal(t, entity.StatusCompleted, d.Decide(order))
		}
	})

	t.Run("rate zero always fails", func(t *testing.T) {
		d := NewRateDeciderWithSource(0, rand.NewSource(42))
		for i := 0; i < 50; i++ {
			assert.Equal(t, entity.StatusFailed, d.Decide(order))
		}
	})

	t.Run("out-of-range rates are clamped", func(t *testing.T) {
		assert.Equal(t, entity.StatusCompleted, NewRateDeciderWithSource(7, rand.NewSource(1)).Decide(order))
		assert.Equal(t, entity.StatusFailed, NewRateDeciderWithSource(-1, rand.NewSource(1)).Decide(order))
	})
}
