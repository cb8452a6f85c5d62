package jobs

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
	repo "github.com/Additional-Code/orderdesk/internal/repository/order"
)

var staleProcessing = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "orderdesk_orders_stale_processing",
	Help: "Orders stuck in processing past the staleness threshold.",
})

// StaleOrderScan periodically flags orders that have sat in processing past
// the configured threshold. It reports the anomaly for operators; it never
// requeues or mutates the orders.
type StaleOrderScan struct {
	store     repo.Store
	logger    *zap.Logger
	cron      *cron.Cron
	threshold time.Duration
	schedule  string
}

// Module wires the scan into the Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewStaleOrderScan),
	fx.Invoke(func(lc fx.Lifecycle, scan *StaleOrderScan) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error { return scan.Start() },
			OnStop: func(context.Context) error {
				scan.Stop()
				return nil
			},
		})
	}),
)

// NewStaleOrderScan builds the scan from worker configuration.
func NewStaleOrderScan(store repo.Store, cfg config.Config, logger *zap.Logger) *StaleOrderScan {
	return &StaleOrderScan{
		store:     store,
		logger:    logger,
		cron:      cron.New(),
		threshold: cfg.Worker.StaleThreshold,
		schedule:  cfg.Worker.StaleScanSchedule,
	}
}

// Start registers and launches the cron schedule.
func (s *StaleOrderScan) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.Run); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("stale order scan started",
		zap.String("schedule", s.schedule),
		zap.Duration("threshold", s.threshold),
	)
	return nil
}

// Stop halts the cron scheduler and waits for a running scan to finish.
func (s *StaleOrderScan) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("stale order scan stopped")
}

// Run executes a single scan pass.
func (s *StaleOrderScan) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-s.threshold)
	stale, err := s.store.FindStaleProcessing(ctx, cutoff)
	if err != nil {
		s.logger.Error("stale order scan failed", zap.Error(err))

		return
	}

	staleProcessing.Set(float64(len(stale)))
	for _, order := range stale {
		s.logger.Warn("order stuck in processing",
			zap.String("order_id", order.ID),
			zap.Time("updated_at", order.UpdatedAt),
			zap.Duration("threshold", s.threshold),
		)
	}
}
