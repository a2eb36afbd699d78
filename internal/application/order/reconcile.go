package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	dompay "github.com/Zhima-Mochi/minishop-orders/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/sagalog"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseReconcile  = "order.reconcile"
	workflowReconcile = "order_reconciliation"
)

type ReconcileInput struct {
	OrderID string
}

type ReconcileResult struct {
	Order          *domain.Order
	StockSynced    int
	LedgerRecorded int
	// Deferred counts owed calls left for a later run because the deadline on
	// ctx could not fit another one.
	Deferred int
}

// ReconcileUseCase retries the post-persistence side effects an order still owes:
// stock decrements for unsynced line items and ledger entries for unrecorded
// payments of a paid order. Each owed effect is attempted at most once per run.
type ReconcileUseCase struct {
	repo     domain.Repository
	products ProductDirectory
	ledger   PaymentLedger
	saga     application.SagaTrail

	// callBudget is the longest a single remote call may take.
	callBudget time.Duration

	log     observability.Logger
	inst    application.Instruments
	retries observability.Counter // order_sync_retries_total{kind,outcome}
}

type ReconcileOption func(*ReconcileUseCase)

// WithCallBudget stops a run from starting a remote call it could not finish
// before the deadline on its context.
func WithCallBudget(d time.Duration) ReconcileOption {
	return func(uc *ReconcileUseCase) { uc.callBudget = d }
}

func NewReconcileUseCase(
	repo domain.Repository,
	collab Collaborators,
	recorder sagalog.Recorder,
	tel observability.Observability,
	opts ...ReconcileOption,
) *ReconcileUseCase {
	tel = observability.OrNop(tel)
	uc := &ReconcileUseCase{
		repo:     repo,
		products: collab.Products,
		ledger:   collab.Ledger,
		saga:     application.NewSagaTrail(recorder, workflowReconcile),
		log:      tel.Logger().With(observability.F("service", orderService)),
		inst:     application.NewInstruments(tel),
		retries:  tel.Metrics().Counter(observability.MSyncRetries),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *ReconcileUseCase) Execute(ctx context.Context, cmd ReconcileInput) (_ *ReconcileResult, err error) {
	ctx, run := uc.inst.Start(ctx, uc.log, useCaseReconcile, "Reconcile",
		attribute.String("order.id", cmd.OrderID),
	)
	defer func() { run.End(err) }()
	logger := run.Logger
	run.With(observability.F("order_id", cmd.OrderID))

	if cmd.OrderID == "" {
		run.Fail("VALIDATION_FAILED")
		return nil, domain.NewValidationError("order id is required")
	}

	entity, gerr := uc.repo.Get(ctx, cmd.OrderID)
	if gerr != nil {
		if errors.Is(gerr, domain.ErrNotFound) {
			run.Fail("ORDER_NOT_FOUND")
			return nil, domain.NewNotFoundError(cmd.OrderID)
		}
		run.Fail("REPO_GET_FAILED")
		return nil, wrapRepositoryError(gerr)
	}
	if !entity.HasPendingSync() {
		run.Outcome("skipped", "NOTHING_PENDING")
		return &ReconcileResult{Order: entity}, nil
	}
	uc.saga.Record(ctx, logger, entity.ID, sagalog.StatusStarted, sagalog.StepReconciliation, "")

	result := &ReconcileResult{Order: entity}
	var errs []error

	// Only the flag of a completed call is written back, on top of whatever the
	// order became meanwhile, so a settlement racing this run is never undone.
	persist := func(mark func(*domain.Order) error) {
		fresh, merr := domain.Mutate(ctx, uc.repo, entity.ID, mark)
		if merr != nil {
			errs = append(errs, wrapRepositoryError(merr))
			return
		}
		result.Order = fresh
	}

	owed := entity.UnsyncedItems()
	for n, i := range owed {
		if !uc.fits(ctx) {
			result.Deferred += len(owed) - n
			break
		}
		item := entity.Items[i]
		if _, aerr := uc.products.AdjustStock(ctx, item.ProductID, -item.Quantity); aerr != nil {
			uc.countRetry("stock", "error")
			errs = append(errs, domain.NewStockSyncError(entity.ID, item.ProductID, aerr))
			continue
		}
		uc.countRetry("stock", "success")
		result.StockSynced++
		persist(markStockSynced(i))
	}

	unrecorded := entity.UnrecordedPayments()
	for n, i := range unrecorded {
		if !uc.fits(ctx) {
			result.Deferred += len(unrecorded) - n
			break
		}
		p := entity.Payments[i]
		rerr := uc.ledger.Record(ctx, dompay.Entry{
			OrderID:       entity.ID,
			PaymentTypeID: p.PaymentTypeID,
			Total:         p.Amount,
		})
		if rerr != nil {
			uc.countRetry("ledger", "error")
			errs = append(errs, domain.NewLedgerSyncError(entity.ID, p.PaymentTypeID, rerr))
			continue
		}
		uc.countRetry("ledger", "success")
		result.LedgerRecorded++
		persist(markPaymentRecorded(i))
	}

	run.With(
		observability.F("stock_synced", result.StockSynced),
		observability.F("ledger_recorded", result.LedgerRecorded),
		observability.F("deferred", result.Deferred),
	)

	if len(errs) > 0 {
		run.Fail("SYNC_INCOMPLETE")
		joined := errors.Join(errs...)
		uc.saga.Record(ctx, logger, entity.ID, sagalog.StatusFailed, sagalog.StepReconciliation, joined.Error())
		return result, joined
	}
	if result.Deferred > 0 {
		run.Outcome("partial", "DEADLINE_REACHED")
	}
	uc.saga.Record(ctx, logger, entity.ID, sagalog.StatusCompleted, sagalog.StepReconciliation,
		fmt.Sprintf("stock=%d ledger=%d deferred=%d", result.StockSynced, result.LedgerRecorded, result.Deferred))
	return result, nil
}

func (uc *ReconcileUseCase) fits(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	deadline, ok := ctx.Deadline()
	return !ok || time.Until(deadline) > uc.callBudget
}

func markPaymentRecorded(i int) func(*domain.Order) error {
	return func(o *domain.Order) error {
		o.MarkPaymentRecorded(i)
		return nil
	}
}

func (uc *ReconcileUseCase) countRetry(kind, outcome string) {
	uc.retries.Add(1,
		observability.L("kind", kind),
		observability.L("outcome", outcome),
	)
}
