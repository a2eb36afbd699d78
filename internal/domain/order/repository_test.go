package order_test

import (
	"context"
	"errors"
	"testing"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertOrder(t *testing.T, repo domain.Repository) *domain.Order {
	t.Helper()
	o, err := domain.New("o-1", "u-1", []domain.LineItem{
		{ProductID: "P1", Quantity: 1, UnitPrice: decimal.NewFromInt(10)},
		{ProductID: "P2", Quantity: 1, UnitPrice: decimal.NewFromInt(10)},
	})
	require.NoError(t, err)
	require.NoError(t, repo.Insert(context.Background(), o))
	return o
}

// racingRepo lets another writer update the order right before the first Update.
type racingRepo struct {
	domain.Repository
	race func()
}

func (r *racingRepo) Update(ctx context.Context, o *domain.Order) error {
	if r.race != nil {
		race := r.race
		r.race = nil
		race()
	}
	return r.Repository.Update(ctx, o)
}

func TestMutateRetriesOnConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	store := memory.NewOrderRepository()
	insertOrder(t, store)

	repo := &racingRepo{Repository: store, race: func() {
		_, err := domain.Mutate(ctx, store, "o-1", func(o *domain.Order) error {
			return o.PaymentAuthorized([]domain.Payment{{PaymentTypeID: 1, Amount: o.Total}})
		})
		require.NoError(t, err)
	}}

	calls := 0
	got, err := domain.Mutate(ctx, repo, "o-1", func(o *domain.Order) error {
		calls++
		o.MarkStockSynced(1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, domain.StatusPaid, got.Status)

	stored, err := store.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, stored.Status)
	assert.Len(t, stored.Payments, 1)
	assert.Equal(t, []int{0}, stored.UnsyncedItems())
	assert.Equal(t, int64(3), stored.Version)
}

func TestMutateStopsOnCallbackError(t *testing.T) {
	store := memory.NewOrderRepository()
	insertOrder(t, store)
	stop := errors.New("stop")

	_, err := domain.Mutate(context.Background(), store, "o-1", func(*domain.Order) error { return stop })
	assert.ErrorIs(t, err, stop)

	stored, err := store.Get(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
}

func TestMutateUnknownOrder(t *testing.T) {
	_, err := domain.Mutate(context.Background(), memory.NewOrderRepository(), "nope", func(*domain.Order) error { return nil })
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
