package worker

import (
	"context"
	"fmt"
	"time"

	domorder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
)

const (
	componentSweeper = "order_sync_sweeper"
	defaultBatch     = 100
)

// Sweeper periodically looks for orders that still owe stock or ledger side
// effects and asks the reconciler to retry them via order.sync_pending. Orders
// touched within the grace period are left alone so in-flight requests finish first.
type Sweeper struct {
	repo      domorder.Repository
	publisher domoutbox.Publisher
	interval  time.Duration
	grace     time.Duration
	batch     int
	now       func() time.Time
	log       observability.Logger
}

func NewSweeper(repo domorder.Repository, publisher domoutbox.Publisher, interval, grace time.Duration, logger observability.Logger) *Sweeper {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Sweeper{
		repo:      repo,
		publisher: publisher,
		interval:  interval,
		grace:     grace,
		batch:     defaultBatch,
		now:       time.Now,
		log:       logger.With(observability.F("component", componentSweeper)),
	}
}

// Run sweeps on every tick until ctx is done. A non-positive interval disables it.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 || s.repo == nil || s.publisher == nil {
		s.log.Info("sweeper_disabled")
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("sweeper_started",
		observability.F("interval", s.interval.String()),
		observability.F("grace", s.grace.String()),
	)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper_stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.log.Warn("sweep_failed", observability.Err(err))
			}
		}
	}
}

// SweepOnce publishes one sync request per pending order and returns how many were queued.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.grace)
	orders, err := s.repo.ListPendingSync(ctx, cutoff, s.batch)
	if err != nil {
		return 0, fmt.Errorf("sweeper: list pending: %w", err)
	}

	queued := 0
	for _, o := range orders {
		if err := s.publisher.Publish(ctx, domorder.NewSyncPendingEvent(o.ID)); err != nil {
			s.log.Warn("sync_request_publish_failed",
				observability.F("order_id", o.ID),
				observability.Err(err),
			)
			continue
		}
		queued++
	}
	if queued > 0 {
		s.log.Info("sync_requests_queued", observability.F("orders", queued))
	}
	return queued, nil
}
