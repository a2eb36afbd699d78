package workerpresentation

import (
	"context"
	"errors"
	"time"

	apporder "github.com/Zhima-Mochi/minishop-orders/internal/application/order"
	domorder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"
)

const (
	componentSyncWorker = "order_sync_worker"
	// DefaultClaimTTL bounds how long one reconciler owns an order.
	DefaultClaimTTL = 2 * time.Minute
	// claimMargin is kept between the reconcile deadline and the claim expiry.
	claimMargin = 5 * time.Second
)

type Reconciler interface {
	Execute(ctx context.Context, cmd apporder.ReconcileInput) (*apporder.ReconcileResult, error)
}

// SyncWorker reacts to order.sync_pending by reconciling the order, once per claim.
type SyncWorker struct {
	subscriber domoutbox.Subscriber
	reconciler Reconciler
	claimer    apporder.Claimer
	claimTTL   time.Duration
	log        observability.Logger
}

type SyncOption func(*SyncWorker)

// WithClaimTTL sets how long a claim lasts. A reconcile run never outlives it.
func WithClaimTTL(ttl time.Duration) SyncOption {
	return func(w *SyncWorker) {
		if ttl > claimMargin {
			w.claimTTL = ttl
		}
	}
}

func NewSyncWorker(subscriber domoutbox.Subscriber, reconciler Reconciler, claimer apporder.Claimer, tel observability.Observability, opts ...SyncOption) *SyncWorker {
	tel = observability.OrNop(tel)
	w := &SyncWorker{
		subscriber: subscriber,
		reconciler: reconciler,
		claimer:    claimer,
		claimTTL:   DefaultClaimTTL,
		log:        tel.Logger().With(observability.F("component", componentSyncWorker)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *SyncWorker) Start() {
	if w.subscriber == nil || w.reconciler == nil {
		return
	}
	w.subscriber.Subscribe(domorder.SyncPendingEvent{}.EventName(), w.Handle)
}

func (w *SyncWorker) Handle(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.SyncPendingEvent)
	if !ok {
		return nil
	}

	ctx = WithEventContext(ctx, w.log, e)
	logger := logctx.FromOr(ctx, w.log)

	if w.claimer != nil {
		key := "order-sync:" + evt.OrderID
		ok, err := w.claimer.Claim(ctx, key, w.claimTTL)
		if err != nil {
			return err
		}
		if !ok {
			logger.Debug("sync_already_claimed")
			return nil
		}
		defer func() {
			if rerr := w.claimer.Release(context.WithoutCancel(ctx), key); rerr != nil {
				logger.Warn("sync_claim_release_failed", observability.Err(rerr))
			}
		}()

		// Stop before the claim lapses so a second reconciler never overlaps this one.
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.claimTTL-claimMargin)
		defer cancel()
	}

	_, err := w.reconciler.Execute(ctx, apporder.ReconcileInput{OrderID: evt.OrderID})
	if errors.Is(err, domorder.ErrNotFound) {
		return nil
	}
	return err
}
