package worker

import (
	"context"
	"testing"
	"time"

	domorder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capture struct{ ids []string }

func (c *capture) Publish(_ context.Context, e domoutbox.Event) error {
	c.ids = append(c.ids, e.(domorder.SyncPendingEvent).OrderID)
	return nil
}

func TestSweepOnceQueuesOnlyStalePendingOrders(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()

	pending, err := domorder.New("o-pending", "u-1", []domorder.LineItem{{ProductID: "P1", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}})
	require.NoError(t, err)
	require.NoError(t, repo.Insert(ctx, pending))

	done, err := domorder.New("o-done", "u-1", []domorder.LineItem{{ProductID: "P1", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}})
	require.NoError(t, err)
	done.MarkStockSynced(0)
	require.NoError(t, repo.Insert(ctx, done))

	pub := &capture{}
	s := NewSweeper(repo, pub, time.Second, time.Minute, nil)

	n, err := s.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "orders inside the grace period are skipped")

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	n, err = s.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"o-pending"}, pub.ids)
}

func TestRunStopsWithContext(t *testing.T) {
	s := NewSweeper(memory.NewOrderRepository(), &capture{}, 10*time.Millisecond, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Run(ctx); close(done) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
