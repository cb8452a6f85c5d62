package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "redis", cfg.Queue.Driver)
	assert.Equal(t, "order_queue", cfg.Queue.Key)
	assert.Equal(t, 5*time.Second, cfg.Worker.ProcessingDelay)
	assert.Equal(t, 0.9, cfg.Worker.SuccessRate)
	assert.Equal(t, 3, cfg.Worker.WriteRetryMax)
	assert.Equal(t, 5*time.Minute, cfg.Worker.StaleThreshold)
	assert.Equal(t, "@every 1m", cfg.Worker.StaleScanSchedule)
	assert.Equal(t, cfg.Database.WriterDSN, cfg.Database.ReaderDSN, "reader falls back to writer")
}

func TestNew_Overrides(t *testing.T) {
	t.Setenv("QUEUE_DRIVER", "memory")
	t.Setenv("WORKER_PROCESSING_DELAY", "250ms")
	t.Setenv("WORKER_SUCCESS_RATE", "0.5")
	t.Setenv("WORKER_CONCURRENCY", "4")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Queue.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.Worker.ProcessingDelay)
	assert.Equal(t, 0.5, cfg.Worker.SuccessRate)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
}

func TestNew_Invalid(t *testing.T) {
	t.Run("queue driver", func(t *testing.T) {
		t.Setenv("QUEUE_DRIVER", "rabbitmq")
		_, err := New()
		assert.ErrorContains(t, err, "unsupported queue driver")
	})

	t.Run("success rate out of range", func(t *testing.T) {
		t.Setenv("WORKER_SUCCESS_RATE", "1.5")
		_, err := New()
		assert.ErrorContains(t, err, "WORKER_SUCCESS_RATE")
	})

	t.Run("non-numeric success rate falls back to default", func(t *testing.T) {
		t.Setenv("WORKER_SUCCESS_RATE", "often")
		cfg, err := New()
		require.NoError(t, err)
		assert.Equal(t, 0.9, cfg.Worker.SuccessRate)
	})
}
