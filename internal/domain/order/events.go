package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderCreatedEvent is emitted once an order passed the durability checkpoint.
type OrderCreatedEvent struct {
	OrderID    string          `json:"orderId"`
	UserID     string          `json:"userId"`
	Total      decimal.Decimal `json:"totalValue"`
	Items      int             `json:"items"`
	OccurredAt time.Time       `json:"occurredAt"`
}

func (OrderCreatedEvent) EventName() string     { return "order.created" }
func (e OrderCreatedEvent) AggregateID() string { return e.OrderID }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Total:      o.Total,
		Items:      len(o.Items),
		OccurredAt: time.Now().UTC(),
	}
}

// StockSyncFailedEvent is emitted when a stock decrement could not be applied after persistence.
type StockSyncFailedEvent struct {
	OrderID    string    `json:"orderId"`
	ProductID  string    `json:"productId"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (StockSyncFailedEvent) EventName() string     { return "order.stock_sync_failed" }
func (e StockSyncFailedEvent) AggregateID() string { return e.OrderID }

func NewStockSyncFailedEvent(o *Order, productID, reason string) StockSyncFailedEvent {
	return StockSyncFailedEvent{
		OrderID:    o.ID,
		ProductID:  productID,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}

type OrderPaidEvent struct {
	OrderID    string          `json:"orderId"`
	UserID     string          `json:"userId"`
	Total      decimal.Decimal `json:"totalValue"`
	Payments   int             `json:"payments"`
	OccurredAt time.Time       `json:"occurredAt"`
}

func (OrderPaidEvent) EventName() string     { return "order.paid" }
func (e OrderPaidEvent) AggregateID() string { return e.OrderID }

func NewOrderPaidEvent(o *Order) OrderPaidEvent {
	return OrderPaidEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Total:      o.Total,
		Payments:   len(o.Payments),
		OccurredAt: time.Now().UTC(),
	}
}

type PaymentDeclinedEvent struct {
	OrderID    string    `json:"orderId"`
	UserID     string    `json:"userId"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (PaymentDeclinedEvent) EventName() string     { return "order.payment_declined" }
func (e PaymentDeclinedEvent) AggregateID() string { return e.OrderID }

func NewPaymentDeclinedEvent(o *Order) PaymentDeclinedEvent {
	return PaymentDeclinedEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Reason:     o.FailureReason,
		OccurredAt: time.Now().UTC(),
	}
}

type LedgerSyncFailedEvent struct {
	OrderID       string    `json:"orderId"`
	PaymentTypeID int       `json:"paymentTypeId"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurredAt"`
}

func (LedgerSyncFailedEvent) EventName() string     { return "order.ledger_sync_failed" }
func (e LedgerSyncFailedEvent) AggregateID() string { return e.OrderID }

func NewLedgerSyncFailedEvent(o *Order, paymentTypeID int, reason string) LedgerSyncFailedEvent {
	return LedgerSyncFailedEvent{
		OrderID:       o.ID,
		PaymentTypeID: paymentTypeID,
		Reason:        reason,
		OccurredAt:    time.Now().UTC(),
	}
}

// SyncPendingEvent asks the reconciler to retry the outstanding side effects of an order.
type SyncPendingEvent struct {
	OrderID    string    `json:"orderId"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (SyncPendingEvent) EventName() string     { return "order.sync_pending" }
func (e SyncPendingEvent) AggregateID() string { return e.OrderID }

func NewSyncPendingEvent(orderID string) SyncPendingEvent {
	return SyncPendingEvent{OrderID: orderID, OccurredAt: time.Now().UTC()}
}
