package order

import (
	"context"
	"errors"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	dompay "github.com/Zhima-Mochi/minishop-orders/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"
)

// QueryService serves the read-only order projections and the ledger lookup.
type QueryService struct {
	repo   domain.Repository
	ledger PaymentLedger
	log    observability.Logger
}

func NewQueryService(repo domain.Repository, ledger PaymentLedger, tel observability.Observability) *QueryService {
	return &QueryService{
		repo:   repo,
		ledger: ledger,
		log:    observability.OrNop(tel).Logger().With(observability.F("component", "order_query")),
	}
}

func (s *QueryService) Get(ctx context.Context, id string) (*domain.Order, error) {
	if id == "" {
		return nil, domain.NewValidationError("order id is required")
	}
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError(id)
		}
		return nil, wrapRepositoryError(err)
	}
	return o, nil
}

// List returns every order, or only the orders of userID when it is set.
func (s *QueryService) List(ctx context.Context, userID string) ([]*domain.Order, error) {
	orders, err := s.repo.List(ctx, domain.Filter{UserID: userID})
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return orders, nil
}

// Payments checks the order exists and then proxies the ledger lookup.
func (s *QueryService) Payments(ctx context.Context, orderID string) ([]dompay.Record, error) {
	if _, err := s.Get(ctx, orderID); err != nil {
		return nil, err
	}
	records, err := s.ledger.ListByOrder(ctx, orderID)
	if err != nil {
		logctx.FromOr(ctx, s.log).Warn("ledger_lookup_failed",
			observability.F("order_id", orderID),
			observability.Err(err),
		)
		return nil, domain.NewUpstreamUnavailableError("payment", orderID, err)
	}
	return records, nil
}
