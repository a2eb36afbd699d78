package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

type Decision string

const (
	DecisionAuthorized Decision = "authorized"
	DecisionDeclined   Decision = "declined"
)

// Authorizer decides the outcome of an amount-matched payment set. It never fails
// for well-formed input; anything it cannot decide is a decline.
type Authorizer interface {
	Authorize(ctx context.Context, orderID string, total decimal.Decimal, payments []Entry) Decision
}
