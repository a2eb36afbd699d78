package order

import (
	"context"
	"testing"

	"github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createFixture struct {
	repo     *memory.OrderRepository
	catalog  *memory.ProductDirectory
	products *flakyProducts
	users    UserDirectory
	pub      *capturePublisher
	saga     *captureRecorder
}

func newCreateFixture() *createFixture {
	cat := memory.NewProductDirectory(
		catalog.Product{ID: "P1", Name: "Pen", Price: decimal.RequireFromString("10.00"), Stock: 5},
		catalog.Product{ID: "P2", Name: "Pad", Price: decimal.RequireFromString("2.50"), Stock: 1},
	)
	return &createFixture{
		repo:     memory.NewOrderRepository(),
		catalog:  cat,
		products: &flakyProducts{ProductDirectory: cat},
		users:    memory.NewUserDirectory("u-1"),
		pub:      &capturePublisher{},
		saga:     &captureRecorder{},
	}
}

func (f *createFixture) useCase() *CreateOrderUseCase {
	return NewCreateOrderUseCase(
		f.repo,
		Collaborators{Users: f.users, Products: f.products},
		&seqIDs{ids: []string{"o-1", "o-2"}},
		f.pub,
		f.saga,
		nil,
	)
}

func (f *createFixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.catalog.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (f *createFixture) orderCount(t *testing.T) int {
	t.Helper()
	all, err := f.repo.List(context.Background(), domain.Filter{})
	require.NoError(t, err)
	return len(all)
}

func TestCreateOrderPricesPersistsAndDecrements(t *testing.T) {
	f := newCreateFixture()

	res, err := f.useCase().Execute(context.Background(), CreateOrderInput{
		UserID: "u-1",
		Items:  []CreateOrderItem{{ProductID: "P1", Quantity: 2}},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Order)

	assert.Equal(t, "o-1", res.Order.ID)
	assert.Equal(t, domain.StatusPendingPayment, res.Order.Status)
	assert.True(t, res.Order.Total.Equal(decimal.RequireFromString("20.00")))
	assert.Equal(t, 3, f.stock(t, "P1"))
	assert.False(t, res.Order.HasPendingSync())

	stored, err := f.repo.Get(context.Background(), "o-1")
	require.NoError(t, err)
	assert.True(t, stored.Items[0].StockSynced)
	assert.True(t, stored.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.00")))

	assert.Equal(t, []string{"order.created"}, f.pub.names())
	assert.Contains(t, f.saga.steps(), "COMPLETED:stock_sync")
}

func TestCreateOrderTotalSumsEveryLine(t *testing.T) {
	f := newCreateFixture()

	res, err := f.useCase().Execute(context.Background(), CreateOrderInput{
		UserID: "u-1",
		Items: []CreateOrderItem{
			{ProductID: "P1", Quantity: 3},
			{ProductID: "P2", Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.True(t, res.Order.Total.Equal(decimal.RequireFromString("32.50")), res.Order.Total.String())
	assert.Equal(t, 2, f.stock(t, "P1"))
	assert.Equal(t, 0, f.stock(t, "P2"))
}

func TestCreateOrderRejectsBeforeAnyRemoteCall(t *testing.T) {
	tests := []struct {
		name  string
		input CreateOrderInput
	}{
		{name: "missing user", input: CreateOrderInput{Items: []CreateOrderItem{{ProductID: "P1", Quantity: 1}}}},
		{name: "empty cart", input: CreateOrderInput{UserID: "u-1"}},
		{name: "zero quantity", input: CreateOrderInput{UserID: "u-1", Items: []CreateOrderItem{{ProductID: "P1", Quantity: 0}}}},
		{name: "negative quantity", input: CreateOrderInput{UserID: "u-1", Items: []CreateOrderItem{{ProductID: "P1", Quantity: -1}}}},
		{name: "blank product", input: CreateOrderInput{UserID: "u-1", Items: []CreateOrderItem{{Quantity: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCreateFixture()
			f.users = failingUsers{err: errBoom}

			_, err := f.useCase().Execute(context.Background(), tt.input)
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, 0, f.orderCount(t))
			assert.Empty(t, f.products.adjusted)
		})
	}
}

func TestCreateOrderUnknownUserPersistsNothing(t *testing.T) {
	f := newCreateFixture()

	_, err := f.useCase().Execute(context.Background(), CreateOrderInput{
		UserID: "ghost",
		Items:  []CreateOrderItem{{ProductID: "P1", Quantity: 1}},
	})
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	var oerr *domain.Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, "ghost", oerr.ID)
	assert.Equal(t, 0, f.orderCount(t))
	assert.Equal(t, 5, f.stock(t, "P1"))
	assert.Contains(t, f.saga.steps(), "FAILED:user_check")
}

func TestCreateOrderUserDirectoryDownIsUpstream(t *testing.T) {
	f := newCreateFixture()
	f.users = failingUsers{err: errBoom}

	_, err := f.useCase().Execute(context.Background(), CreateOrderInput{
		UserID: "u-1",
		Items:  []CreateOrderItem{{ProductID: "P1", Quantity: 1}},
	})
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, f.orderCount(t))
}

func TestCreateOrderProductFailuresPersistNothing(t *testing.T) {
	tests := []struct {
		name    string
		items   []CreateOrderItem
		getErr  map[string]error
		wantErr error
		wantID  string
	}{
		{
			name:    "unknown product after a valid one",
			items:   []CreateOrderItem{{ProductID: "P1", Quantity: 1}, {ProductID: "P9", Quantity: 1}},
			wantErr: domain.ErrProductNotFound,
			wantID:  "P9",
		},
		{
			name:    "quantity above live stock",
			items:   []CreateOrderItem{{ProductID: "P1", Quantity: 1}, {ProductID: "P2", Quantity: 2}},
			wantErr: domain.ErrInsufficientStock,
			wantID:  "P2",
		},
		{
			name:    "directory unreachable",
			items:   []CreateOrderItem{{ProductID: "P1", Quantity: 1}},
			getErr:  map[string]error{"P1": errBoom},
			wantErr: domain.ErrUpstreamUnavailable,
			wantID:  "P1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCreateFixture()
			f.products.getErr = tt.getErr

			_, err := f.useCase().Execute(context.Background(), CreateOrderInput{UserID: "u-1", Items: tt.items})
			require.ErrorIs(t, err, tt.wantErr)

			var oerr *domain.Error
			require.ErrorAs(t, err, &oerr)
			assert.Equal(t, tt.wantID, oerr.ID)
			assert.Equal(t, 0, f.orderCount(t))
			assert.Empty(t, f.products.adjusted)
		})
	}
}

func TestCreateOrderInsufficientStockCarriesQuantities(t *testing.T) {
	f := newCreateFixture()

	_, err := f.useCase().Execute(context.Background(), CreateOrderInput{
		UserID: "u-1",
		Items:  []CreateOrderItem{{ProductID: "P1", Quantity: 6}},
	})
	var oerr *domain.Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, 6, oerr.Details["requested"])
	assert.Equal(t, 5, oerr.Details["available"])
}

func TestCreateOrderStockSyncFailureKeepsOrderAndEarlierDecrements(t *testing.T) {
	f := newCreateFixture()
	f.products.adjustErr = map[string]error{"P2": catalog.ErrStockRejected}

	res, err := f.useCase().Execute(context.Background(), CreateOrderInput{
		UserID: "u-1",
		Items: []CreateOrderItem{
			{ProductID: "P1", Quantity: 2},
			{ProductID: "P2", Quantity: 1},
		},
	})
	require.ErrorIs(t, err, domain.ErrStockSync)
	require.NotNil(t, res)
	assert.Equal(t, domain.StatusPendingPayment, res.Order.Status)

	var oerr *domain.Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, "P2", oerr.ID)

	assert.Equal(t, 3, f.stock(t, "P1"))
	assert.Equal(t, 1, f.stock(t, "P2"))

	stored, gerr := f.repo.Get(context.Background(), "o-1")
	require.NoError(t, gerr)
	assert.Equal(t, []int{1}, stored.UnsyncedItems())
	assert.Equal(t, []string{"order.created", "order.stock_sync_failed"}, f.pub.names())
}

func TestCreateOrderPersistsEachDecrementBeforeTheNext(t *testing.T) {
	f := newCreateFixture()
	var seen []bool
	f.products.onAdjust = func(id string) {
		if id != "P2" {
			return
		}
		stored, err := f.repo.Get(context.Background(), "o-1")
		require.NoError(t, err)
		seen = []bool{stored.Items[0].StockSynced, stored.Items[1].StockSynced}
	}

	_, err := f.useCase().Execute(context.Background(), CreateOrderInput{
		UserID: "u-1",
		Items: []CreateOrderItem{
			{ProductID: "P1", Quantity: 2},
			{ProductID: "P2", Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, seen)

	stored, err := f.repo.Get(context.Background(), "o-1")
	require.NoError(t, err)
	assert.False(t, stored.HasPendingSync())
}

func TestCreateOrderIsNotIdempotent(t *testing.T) {
	f := newCreateFixture()
	uc := f.useCase()
	in := CreateOrderInput{UserID: "u-1", Items: []CreateOrderItem{{ProductID: "P1", Quantity: 1}}}

	first, err := uc.Execute(context.Background(), in)
	require.NoError(t, err)
	second, err := uc.Execute(context.Background(), in)
	require.NoError(t, err)

	assert.NotEqual(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 2, f.orderCount(t))
	assert.Equal(t, 3, f.stock(t, "P1"))
}
