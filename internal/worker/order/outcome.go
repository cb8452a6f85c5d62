package order

import (
	"math/rand"
	"sync"
	"time"

	"github.com/Additional-Code/orderdesk/internal/entity"
)

// OutcomeDecider picks the terminal status for an order that finished its
// simulated fulfillment. Injected so tests (and alternative deployments)
// can make the outcome deterministic.
type OutcomeDecider interface {
	Decide(order *entity.Order) entity.Status
}

// RateDecider completes orders with a fixed probability and fails the rest.
type RateDecider struct {
	rate float64
	mu   sync.Mutex
	rnd  *rand.Rand
}

// NewRateDecider builds a decider with the given success rate in [0,1].
func NewRateDecider(rate float64) *RateDecider {
	return NewRateDeciderWithSource(rate, rand.NewSource(time.Now().UnixNano()))
}

// NewRateDeciderWithSource allows a seeded source for reproducible runs.
func NewRateDeciderWithSource(rate float64, src rand.Source) *RateDecider {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	return &RateDecider{rate: rate, rnd: rand.New(src)}
}

// Decide implements OutcomeDecider.
func (d *RateDecider) Decide(*entity.Order) entity.Status {
	d.mu.Lock()
	roll := d.rnd.Float64()
	d.mu.Unlock()
	if roll < d.rate {
		return entity.StatusCompleted
	}
	return entity.StatusFailed
}

// FixedDecider always returns the same outcome. Useful in tests and demos.
type FixedDecider struct {
	Outcome entity.Status
}

// Decide implements OutcomeDecider.
func (d FixedDecider) Decide(*entity.Order) entity.Status {
	return d.Outcome
}
