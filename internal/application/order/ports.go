package order

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"
	dompay "github.com/Zhima-Mochi/minishop-orders/internal/domain/payment"
)

type IDGenerator interface {
	NewID() string
}

// UserDirectory answers whether a user exists. It returns nil when it does,
// an error matching order.ErrUserNotFound when it does not, and any other error
// when the directory could not be asked.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) error
}

// ProductDirectory reads product snapshots and applies signed stock deltas.
// Get returns catalog.ErrNotFound for unknown products. AdjustStock must refuse
// deltas that would take stock below zero (catalog.ErrStockRejected).
type ProductDirectory interface {
	Get(ctx context.Context, productID string) (*catalog.Product, error)
	AdjustStock(ctx context.Context, productID string, delta int) (*catalog.Product, error)
}

type PaymentLedger interface {
	Record(ctx context.Context, entry dompay.Entry) error
	ListByOrder(ctx context.Context, orderID string) ([]dompay.Record, error)
}

// Claimer grants short exclusive ownership of a key so that only one reconciler
// works an order at a time. Release gives up a claim this process holds and is a
// no-op for claims that expired or belong to someone else.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
