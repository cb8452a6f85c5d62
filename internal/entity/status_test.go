package entity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/orderdesk/internal/entity"
)

func TestStatus_Valid(t *testing.T) {
	for _, s := range entity.Statuses() {
		assert.True(t, s.Valid(), "status %q should be valid", s)
	}

	assert.False(t, entity.Status("").Valid())
	assert.False(t, entity.Status("shipped").Valid())
	assert.False(t, entity.Status("PENDING").Valid())
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, entity.StatusPending.Terminal())
	assert.False(t, entity.StatusProcessing.Terminal())
	assert.True(t, entity.StatusCompleted.Terminal())
	assert.True(t, entity.StatusFailed.Terminal())
}

func TestStatus_CanTransitionTo(t *testing.T) {
	allowed := map[entity.Status][]entity.Status{
		entity.StatusPending:    {entity.StatusProcessing},
		entity.StatusProcessing: {entity.StatusCompleted, entity.StatusFailed},
		entity.StatusCompleted:  {},
		entity.StatusFailed:     {},
	}

	for _, from := range entity.Statuses() {
		for _, to := range entity.Statuses() {
			want := false
			for _, legal := range allowed[from] {
				if legal == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestStatus_NoBackwardOrSkippedTransitions(t *testing.T) {
	// The lifecycle never moves backward and never skips processing.
	assert.False(t, entity.StatusPending.CanTransitionTo(entity.StatusCompleted))
	assert.False(t, entity.StatusPending.CanTransitionTo(entity.StatusFailed))
	assert.False(t, entity.StatusProcessing.CanTransitionTo(entity.StatusPending))
	assert.False(t, entity.StatusCompleted.CanTransitionTo(entity.StatusProcessing))
	assert.False(t, entity.StatusFailed.CanTransitionTo(entity.StatusPending))
}

func TestParseStatus(t *testing.T) {
	t.Run("accepts every defined status", func(t *testing.T) {
		for _, s := range entity.Statuses() {
			parsed, err := entity.ParseStatus(s.String())
			require.NoError(t, err)
			assert.Equal(t, s, parsed)
		}
	})

	t.Run("rejects unknown values", func(t *testing.T) {
		for _, raw := range []string{"", "done", "Pending", "cancelled"} {
			_, err := entity.ParseStatus(raw)
			require.Error(t, err, "raw %q", raw)
		}
	})
}
