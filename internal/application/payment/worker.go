package payment

import (
	"context"

	domorder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"
)

const notificationWorker = "payment_notification_worker"

// NotificationWorker tells the customer how a settlement ended. Delivery is a
// structured log line; a mail or push adapter would hang off the same events.
type NotificationWorker struct {
	subscriber domoutbox.Subscriber
	log        observability.Logger
	reqCounter observability.Counter // usecase_requests_total{use_case,outcome}
}

func NewNotificationWorker(subscriber domoutbox.Subscriber, tel observability.Observability) *NotificationWorker {
	tel = observability.OrNop(tel)
	return &NotificationWorker{
		subscriber: subscriber,
		log:        tel.Logger().With(observability.F("component", notificationWorker)),
		reqCounter: tel.Metrics().Counter(observability.MUsecaseRequests),
	}
}

func (w *NotificationWorker) Start() {
	if w.subscriber == nil {
		return
	}
	w.subscriber.Subscribe(domorder.OrderPaidEvent{}.EventName(), w.handleOrderPaid)
	w.subscriber.Subscribe(domorder.PaymentDeclinedEvent{}.EventName(), w.handlePaymentDeclined)
}

func (w *NotificationWorker) handleOrderPaid(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderPaidEvent)
	if !ok {
		w.count("payment.notify.paid", "ignored")
		return nil
	}
	logctx.FromOr(ctx, w.log).With(observability.F("event", e.EventName())).Info("payment_confirmation_sent",
		observability.F("order_id", evt.OrderID),
		observability.F("user_id", evt.UserID),
		observability.F("total", evt.Total.StringFixed(2)),
		observability.F("payments", evt.Payments),
	)
	w.count("payment.notify.paid", "success")
	return nil
}

func (w *NotificationWorker) handlePaymentDeclined(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.PaymentDeclinedEvent)
	if !ok {
		w.count("payment.notify.declined", "ignored")
		return nil
	}
	logctx.FromOr(ctx, w.log).With(observability.F("event", e.EventName())).Info("payment_failure_notice_sent",
		observability.F("order_id", evt.OrderID),
		observability.F("user_id", evt.UserID),
		observability.F("reason", evt.Reason),
	)
	w.count("payment.notify.declined", "success")
	return nil
}

func (w *NotificationWorker) count(useCase, outcome string) {
	w.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
}
