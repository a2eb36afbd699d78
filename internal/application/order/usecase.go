package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/sagalog"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService       = "order-service"
	useCaseOrderCreate = "order.create"
	workflowCreate     = "order_creation"
)

var ErrRepository = errors.New("order: repository failure")

// Collaborators groups the remote directories the order workflows talk to.
type Collaborators struct {
	Users    UserDirectory
	Products ProductDirectory
	Ledger   PaymentLedger
}

// CreateOrderUseCase validates a cart against the user and product directories,
// persists the priced order and then decrements stock item by item.
type CreateOrderUseCase struct {
	repo        domain.Repository
	users       UserDirectory
	products    ProductDirectory
	idGenerator IDGenerator
	events      *application.EventPublisher
	saga        application.SagaTrail

	// Base logger with fixed fields prebound.
	log  observability.Logger
	inst application.Instruments
}

func NewCreateOrderUseCase(
	repo domain.Repository,
	collab Collaborators,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	recorder sagalog.Recorder,
	tel observability.Observability,
) *CreateOrderUseCase {
	tel = observability.OrNop(tel)
	return &CreateOrderUseCase{
		repo:        repo,
		users:       collab.Users,
		products:    collab.Products,
		idGenerator: idGen,
		events:      application.NewEventPublisher(publisher, tel),
		saga:        application.NewSagaTrail(recorder, workflowCreate),
		log:         tel.Logger().With(observability.F("service", orderService)),
		inst:        application.NewInstruments(tel),
	}
}

type CreateOrderItem struct {
	ProductID string
	Quantity  int
}

type CreateOrderInput struct {
	UserID string
	Items  []CreateOrderItem
}

type CreateOrderResult struct {
	Order *domain.Order
}

// Execute runs the creation workflow. When a stock decrement fails after the order
// was persisted, the result still carries the persisted order next to the
// StockSync error.
func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *CreateOrderResult, err error) {
	ctx, run := uc.inst.Start(ctx, uc.log, useCaseOrderCreate, "CreateOrder",
		attribute.String("order.user_id", cmd.UserID),
		attribute.Int("order.items", len(cmd.Items)),
	)
	defer func() { run.End(err) }()
	logger := run.Logger
	span := run.Span()

	if verr := validateCart(cmd); verr != nil {
		run.Fail("VALIDATION_FAILED")
		return nil, verr
	}
	uc.saga.Record(ctx, logger, workflowCreate, sagalog.StatusStarted, sagalog.StepUserCheck, "user "+cmd.UserID)

	if uerr := uc.users.Exists(ctx, cmd.UserID); uerr != nil {
		if errors.Is(uerr, domain.ErrUserNotFound) {
			run.Fail("USER_NOT_FOUND")
			err = domain.NewUserNotFoundError(cmd.UserID)
		} else {
			run.Fail("USER_DIRECTORY_UNAVAILABLE")
			err = domain.NewUpstreamUnavailableError("user", cmd.UserID, uerr)
		}
		uc.saga.Record(ctx, logger, workflowCreate, sagalog.StatusFailed, sagalog.StepUserCheck, err.Error())
		return nil, err
	}

	items, perr := uc.priceItems(ctx, cmd.Items)
	if perr != nil {
		switch {
		case errors.Is(perr, domain.ErrProductNotFound):
			run.Fail("PRODUCT_NOT_FOUND")
		case errors.Is(perr, domain.ErrInsufficientStock):
			run.Fail("INSUFFICIENT_STOCK")
		default:
			run.Fail("PRODUCT_DIRECTORY_UNAVAILABLE")
		}
		uc.saga.Record(ctx, logger, workflowCreate, sagalog.StatusFailed, sagalog.StepItemsValidated, perr.Error())
		return nil, perr
	}

	orderID := uc.idGenerator.NewID()
	entity, derr := domain.New(orderID, cmd.UserID, items)
	if derr != nil {
		run.Fail("DOMAIN_CONSTRUCTION_FAILED")
		return nil, derr
	}
	if cerr := ctx.Err(); cerr != nil {
		run.Fail("CONTEXT_CANCELED")
		return nil, cerr
	}
	if ierr := uc.repo.Insert(ctx, entity); ierr != nil {
		run.Fail("REPO_INSERT_FAILED")
		return nil, wrapRepositoryError(ierr)
	}
	run.With(observability.F("order_id", orderID))
	span.SetAttributes(attribute.String("order.id", orderID))
	span.AddEvent("order.persisted")
	uc.saga.Record(ctx, logger, orderID, sagalog.StatusStepDone, sagalog.StepOrderPersisted, "total "+entity.Total.String())

	if perr := uc.events.Publish(ctx, domain.NewOrderCreatedEvent(entity)); perr != nil {
		run.Status("EVENT_PUBLISH_FAILED")
		run.With(observability.F("event_publish_error", perr.Error()))
	}

	if serr := uc.syncStock(ctx, logger, entity); serr != nil {
		run.Fail("STOCK_SYNC_FAILED")
		return &CreateOrderResult{Order: entity.Clone()}, serr
	}

	uc.saga.Record(ctx, logger, orderID, sagalog.StatusCompleted, sagalog.StepStockSync, "")
	span.SetAttributes(attribute.String("order.status", string(entity.Status)))
	span.AddEvent("order.created", trace.WithAttributes(attribute.String("order.id", orderID)))
	return &CreateOrderResult{Order: entity.Clone()}, nil
}

// priceItems reads every product in cart order, stopping at the first one that is
// missing, short on stock or unreadable.
func (uc *CreateOrderUseCase) priceItems(ctx context.Context, requested []CreateOrderItem) ([]domain.LineItem, error) {
	items := make([]domain.LineItem, 0, len(requested))
	for _, req := range requested {
		product, err := uc.products.Get(ctx, req.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, domain.NewProductNotFoundError(req.ProductID)
			}
			return nil, domain.NewUpstreamUnavailableError("product", req.ProductID, err)
		}
		if !product.Covers(req.Quantity) {
			return nil, domain.NewInsufficientStockError(req.ProductID, req.Quantity, product.Stock)
		}
		items = append(items, domain.LineItem{
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			UnitPrice: product.Price,
		})
	}
	return items, nil
}

// syncStock decrements stock for each line item in order. Each success is
// persisted before the next call, so the stored flags never lag the remote
// stock by more than the item in flight. The first failure stops the loop;
// earlier decrements are kept.
func (uc *CreateOrderUseCase) syncStock(ctx context.Context, logger observability.Logger, entity *domain.Order) error {
	for _, i := range entity.UnsyncedItems() {
		item := entity.Items[i]
		if _, err := uc.products.AdjustStock(ctx, item.ProductID, -item.Quantity); err != nil {
			syncErr := domain.NewStockSyncError(entity.ID, item.ProductID, err)
			logger.Warn("stock_sync_failed",
				observability.F("order_id", entity.ID),
				observability.F("product_id", item.ProductID),
				observability.F("quantity", item.Quantity),
				observability.Err(err),
			)
			uc.saga.Record(ctx, logger, entity.ID, sagalog.StatusFailed, sagalog.StepStockSync, syncErr.Error())
			if perr := uc.events.Publish(ctx, domain.NewStockSyncFailedEvent(entity, item.ProductID, err.Error())); perr != nil {
				logger.Warn("event_publish_failed", observability.F("event", "order.stock_sync_failed"), observability.Err(perr))
			}
			return syncErr
		}
		entity.MarkStockSynced(i)
		if _, err := domain.Mutate(ctx, uc.repo, entity.ID, markStockSynced(i)); err != nil {
			// The decrement happened; a stale flag makes the reconciler repeat it.
			logger.Error("sync_flags_persist_failed",
				observability.F("order_id", entity.ID),
				observability.F("product_id", item.ProductID),
				observability.Err(err),
			)
		}
	}
	return nil
}

func markStockSynced(i int) func(*domain.Order) error {
	return func(o *domain.Order) error {
		o.MarkStockSynced(i)
		return nil
	}
}

func validateCart(cmd CreateOrderInput) error {
	if cmd.UserID == "" {
		return domain.NewValidationError("userId is required")
	}
	if len(cmd.Items) == 0 {
		return domain.NewValidationError("products must contain at least one item")
	}
	for i, item := range cmd.Items {
		if item.ProductID == "" {
			return domain.NewValidationError(fmt.Sprintf("products[%d].productId is required", i))
		}
		if item.Quantity <= 0 {
			return domain.NewValidationError(fmt.Sprintf("products[%d].quantity must be greater than zero", i))
		}
	}
	return nil
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrConflict):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}
