package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/alcast-trading/rfq-engine/internal/metrics"
	"github.com/alcast-trading/rfq-engine/internal/rfq"
)

// StatusCounter is the slice of the store this job needs.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// EventPublisher mirrors the engine's publisher without importing it.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// StatusRefresher periodically recomputes the per-status RFQ gauge and
// emits a snapshot event for downstream dashboards.
type StatusRefresher struct {
	logger    *zap.Logger
	store     StatusCounter
	publisher EventPublisher
	interval  time.Duration
	stopCh    chan struct{}
}

func NewStatusRefresher(logger *zap.Logger, store StatusCounter, pub EventPublisher, interval time.Duration) *StatusRefresher {
	return &StatusRefresher{
		logger:    logger,
		store:     store,
		publisher: pub,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Start runs the refresh loop until Stop or context cancellation.
func (r *StatusRefresher) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("status_refresher.started", zap.Duration("interval", r.interval))

	r.runOnce(ctx)
	for {
		select {
		case <-ticker.C:
			r.runOnce(ctx)
		case <-r.stopCh:
			r.logger.Info("status_refresher.stopped")
			return
		case <-ctx.Done():
			r.logger.Info("status_refresher.stopped (context canceled)")
			return
		}
	}
}

// Stop gracefully halts the refresher.
func (r *StatusRefresher) Stop() {
	close(r.stopCh)
}

func (r *StatusRefresher) runOnce(ctx context.Context) {
	start := time.Now()

	counts, err := r.store.CountByStatus(ctx)
	if err != nil {
		r.logger.Error("status_refresher.count_failed", zap.Error(err))
		metrics.IncError("status_refresher", "count_failed")
		return
	}

	// Statuses with no rows still get an explicit zero so the gauge
	// drops when the last RFQ in a state moves on.
	for _, st := range rfq.AllStatuses() {
		metrics.SetRfqStatusCount(string(st), counts[string(st)])
	}

	if r.publisher != nil {
		event := map[string]any{
			"counts":      counts,
			"timestamp":   time.Now().UTC(),
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if err := r.publisher.Publish(ctx, "evt.rfq.summary.refreshed.v1", event); err != nil {
			r.logger.Warn("status_refresher.publish_failed", zap.Error(err))
		}
	}

	r.logger.Debug("status_refresher.success", zap.Duration("duration", time.Since(start)))
}
