package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	dompay "github.com/Zhima-Mochi/minishop-orders/internal/domain/payment"
)

// PaymentLedger records payment entries per order in arrival order.
type PaymentLedger struct {
	mu      sync.RWMutex
	seq     int
	records []dompay.Record
}

func NewPaymentLedger() *PaymentLedger {
	return &PaymentLedger{}
}

func (l *PaymentLedger) Record(ctx context.Context, entry dompay.Entry) error {
	_ = ctx
	now := time.Now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	l.records = append(l.records, dompay.Record{
		ID:            strconv.Itoa(l.seq),
		OrderID:       entry.OrderID,
		PaymentTypeID: entry.PaymentTypeID,
		Total:         entry.Total,
		CreatedAt:     &now,
	})
	return nil
}

func (l *PaymentLedger) ListByOrder(ctx context.Context, orderID string) ([]dompay.Record, error) {
	_ = ctx

	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]dompay.Record, 0)
	for _, r := range l.records {
		if r.OrderID == orderID {
			out = append(out, r)
		}
	}
	return out, nil
}
