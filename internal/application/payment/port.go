package payment

import (
	"context"

	dompay "github.com/Zhima-Mochi/minishop-orders/internal/domain/payment"
)

// Ledger is the outbound port to the Payment Ledger used by settlement.
type Ledger interface {
	Record(ctx context.Context, entry dompay.Entry) error
}
