package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	domorder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/minishop-orders/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/sagalog"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	paymentService        = "payment-service"
	useCasePaymentSettle  = "payment.settle"
	paymentSpanName       = "SettlePayment"
	workflowSettle        = "payment_settlement"
	paymentDeclinedReason = "payment_declined"
)

var ErrRepository = errors.New("payment: repository failure")

type PaymentInput struct {
	PaymentTypeID int
	Amount        decimal.Decimal
}

type SettlePaymentInput struct {
	OrderID  string
	Payments []PaymentInput
}

// SettlePaymentResult carries the updated order for both decisions. A declined
// settlement is a result, not an error.
type SettlePaymentResult struct {
	Order    *domorder.Order
	Decision dompay.Decision
}

// SettlePaymentUseCase matches a payment set against an order total, asks the
// authorizer for a decision and moves the order accordingly. Authorized payments
// are then written to the ledger one by one.
type SettlePaymentUseCase struct {
	orderRepo  domorder.Repository
	authorizer dompay.Authorizer
	ledger     Ledger
	events     *application.EventPublisher
	saga       application.SagaTrail

	log  observability.Logger
	inst application.Instruments
}

func NewSettlePaymentUseCase(
	orderRepo domorder.Repository,
	authorizer dompay.Authorizer,
	ledger Ledger,
	publisher domoutbox.Publisher,
	recorder sagalog.Recorder,
	tel observability.Observability,
) *SettlePaymentUseCase {
	tel = observability.OrNop(tel)
	if authorizer == nil {
		authorizer = NewRandomAuthorizer(DefaultSuccessRate)
	}
	return &SettlePaymentUseCase{
		orderRepo:  orderRepo,
		authorizer: authorizer,
		ledger:     ledger,
		events:     application.NewEventPublisher(publisher, tel),
		saga:       application.NewSagaTrail(recorder, workflowSettle),
		log:        tel.Logger().With(observability.F("service", paymentService)),
		inst:       application.NewInstruments(tel),
	}
}

func (uc *SettlePaymentUseCase) Execute(ctx context.Context, cmd SettlePaymentInput) (_ *SettlePaymentResult, err error) {
	ctx, run := uc.inst.Start(ctx, uc.log, useCasePaymentSettle, paymentSpanName,
		attribute.String("order.id", cmd.OrderID),
		attribute.Int("payment.entries", len(cmd.Payments)),
	)
	defer func() { run.End(err) }()
	logger := run.Logger
	span := run.Span()
	run.With(observability.F("order_id", cmd.OrderID))

	if verr := validatePayments(cmd); verr != nil {
		run.Fail("VALIDATION_FAILED")
		return nil, verr
	}

	order, gerr := uc.orderRepo.Get(ctx, cmd.OrderID)
	if gerr != nil {
		if errors.Is(gerr, domorder.ErrNotFound) {
			run.Fail("ORDER_NOT_FOUND")
			return nil, domorder.NewNotFoundError(cmd.OrderID)
		}
		run.Fail("ORDER_LOOKUP_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, gerr)
	}
	if !order.CanSettle() {
		run.Fail("ORDER_NOT_SETTLEABLE")
		return nil, domorder.NewNotSettleableError(order.ID, order.Status)
	}
	uc.saga.Record(ctx, logger, order.ID, sagalog.StatusStarted, sagalog.StepAmountMatched, "")

	payments := toPayments(cmd.Payments)
	submitted := domorder.SumPayments(payments)
	if !submitted.Equal(order.Total) {
		run.Fail("AMOUNT_MISMATCH")
		err = domorder.NewAmountMismatchError(order.ID, order.Total, submitted)
		uc.saga.Record(ctx, logger, order.ID, sagalog.StatusFailed, sagalog.StepAmountMatched, err.Error())
		return nil, err
	}

	decision := uc.authorizer.Authorize(ctx, order.ID, order.Total, toEntries(order.ID, payments))
	span.SetAttributes(attribute.String("payment.decision", string(decision)))
	run.With(observability.F("decision", string(decision)))
	uc.saga.Record(ctx, logger, order.ID, sagalog.StatusStepDone, sagalog.StepAuthorization, string(decision))

	if decision != dompay.DecisionAuthorized {
		return uc.decline(ctx, run, order)
	}

	order, err = uc.transition(ctx, run, order.ID, func(o *domorder.Order) error {
		return o.PaymentAuthorized(payments)
	})
	if err != nil {
		return nil, err
	}
	uc.saga.Record(ctx, logger, order.ID, sagalog.StatusStepDone, sagalog.StepStatusUpdated, string(order.Status))
	if perr := uc.events.Publish(ctx, domorder.NewOrderPaidEvent(order)); perr != nil {
		run.Status("EVENT_PUBLISH_FAILED")
		run.With(observability.F("event_publish_error", perr.Error()))
	}

	result := &SettlePaymentResult{Decision: decision}
	if lerr := uc.recordLedger(ctx, logger, order); lerr != nil {
		run.Fail("LEDGER_SYNC_FAILED")
		result.Order = order.Clone()
		return result, lerr
	}
	uc.saga.Record(ctx, logger, order.ID, sagalog.StatusCompleted, sagalog.StepLedgerSync, "")
	result.Order = order.Clone()
	return result, nil
}

func (uc *SettlePaymentUseCase) decline(ctx context.Context, run *application.Run, order *domorder.Order) (*SettlePaymentResult, error) {
	logger := run.Logger
	order, err := uc.transition(ctx, run, order.ID, func(o *domorder.Order) error {
		return o.PaymentDeclined(paymentDeclinedReason)
	})
	if err != nil {
		return nil, err
	}
	run.Outcome("declined", "PAYMENT_DECLINED")
	uc.saga.Record(ctx, logger, order.ID, sagalog.StatusCompleted, sagalog.StepStatusUpdated, string(order.Status))
	if perr := uc.events.Publish(ctx, domorder.NewPaymentDeclinedEvent(order)); perr != nil {
		run.With(observability.F("event_publish_error", perr.Error()))
	}
	return &SettlePaymentResult{Order: order.Clone(), Decision: dompay.DecisionDeclined}, nil
}

// transition applies a settlement outcome on the latest stored order. A writer
// that settled the order in the meantime turns this attempt into
// OrderNotSettleable instead of being overwritten.
func (uc *SettlePaymentUseCase) transition(ctx context.Context, run *application.Run, orderID string, apply func(*domorder.Order) error) (*domorder.Order, error) {
	updated, err := domorder.Mutate(ctx, uc.orderRepo, orderID, func(o *domorder.Order) error {
		if !o.CanSettle() {
			return domorder.NewNotSettleableError(o.ID, o.Status)
		}
		return apply(o)
	})
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, domorder.ErrNotSettleable):
		run.Fail("ORDER_NOT_SETTLEABLE")
		return nil, err
	case errors.Is(err, domorder.ErrInvalidStateTransition):
		run.Fail("STATE_TRANSITION_FAILED")
		return nil, err
	default:
		run.Fail("ORDER_UPDATE_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}
}

// recordLedger writes the unrecorded payments in submission order, stopping at the
// first failure. Each recorded flag is persisted right after its entry; the order
// stays paid.
func (uc *SettlePaymentUseCase) recordLedger(ctx context.Context, logger observability.Logger, order *domorder.Order) error {
	for _, i := range order.UnrecordedPayments() {
		p := order.Payments[i]
		err := uc.ledger.Record(ctx, dompay.Entry{
			OrderID:       order.ID,
			PaymentTypeID: p.PaymentTypeID,
			Total:         p.Amount,
		})
		if err != nil {
			syncErr := domorder.NewLedgerSyncError(order.ID, p.PaymentTypeID, err)
			logger.Warn("ledger_sync_failed",
				observability.F("order_id", order.ID),
				observability.F("payment_type_id", p.PaymentTypeID),
				observability.Err(err),
			)
			uc.saga.Record(ctx, logger, order.ID, sagalog.StatusFailed, sagalog.StepLedgerSync, syncErr.Error())
			if perr := uc.events.Publish(ctx, domorder.NewLedgerSyncFailedEvent(order, p.PaymentTypeID, err.Error())); perr != nil {
				logger.Warn("event_publish_failed", observability.F("event", "order.ledger_sync_failed"), observability.Err(perr))
			}
			return syncErr
		}
		order.MarkPaymentRecorded(i)
		_, err = domorder.Mutate(ctx, uc.orderRepo, order.ID, func(o *domorder.Order) error {
			o.MarkPaymentRecorded(i)
			return nil
		})
		if err != nil {
			logger.Error("sync_flags_persist_failed",
				observability.F("order_id", order.ID),
				observability.F("payment_type_id", p.PaymentTypeID),
				observability.Err(err),
			)
		}
	}
	return nil
}

func validatePayments(cmd SettlePaymentInput) error {
	if cmd.OrderID == "" {
		return domorder.NewValidationError("order id is required")
	}
	if len(cmd.Payments) == 0 {
		return domorder.NewValidationError("payments must contain at least one entry")
	}
	for i, p := range cmd.Payments {
		if p.PaymentTypeID <= 0 {
			return domorder.NewValidationError(fmt.Sprintf("payments[%d].paymentTypeId must be a positive integer", i))
		}
		if p.Amount.IsNegative() {
			return domorder.NewValidationError(fmt.Sprintf("payments[%d].total must not be negative", i))
		}
	}
	return nil
}

func toPayments(in []PaymentInput) []domorder.Payment {
	out := make([]domorder.Payment, 0, len(in))
	for _, p := range in {
		out = append(out, domorder.Payment{PaymentTypeID: p.PaymentTypeID, Amount: p.Amount})
	}
	return out
}

func toEntries(orderID string, payments []domorder.Payment) []dompay.Entry {
	out := make([]dompay.Entry, 0, len(payments))
	for _, p := range payments {
		out = append(out, dompay.Entry{OrderID: orderID, PaymentTypeID: p.PaymentTypeID, Total: p.Amount})
	}
	return out
}
