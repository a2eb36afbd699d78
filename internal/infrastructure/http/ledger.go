package httptransport

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	dompay "github.com/Zhima-Mochi/minishop-orders/internal/domain/payment"
	"github.com/shopspring/decimal"
)

type orderPaymentRequest struct {
	OrderID       string          `json:"orderId"`
	Total         decimal.Decimal `json:"total"`
	TypePaymentID int             `json:"typePaymentId"`
}

type orderPaymentDTO struct {
	ID            flexID          `json:"id"`
	OrderID       flexID          `json:"orderId"`
	Total         decimal.Decimal `json:"total"`
	TypePaymentID flexID          `json:"typePaymentId"`
	CreatedAt     *time.Time      `json:"createdAt,omitempty"`
}

// PaymentLedger records and lists order payments on the payments service.
type PaymentLedger struct {
	c *Client
}

func NewPaymentLedger(c *Client) *PaymentLedger {
	return &PaymentLedger{c: c}
}

func (l *PaymentLedger) Record(ctx context.Context, entry dompay.Entry) error {
	return l.c.Do(ctx, http.MethodPost, "/order-payments", "/order-payments", orderPaymentRequest{
		OrderID:       entry.OrderID,
		Total:         entry.Total,
		TypePaymentID: entry.PaymentTypeID,
	}, nil)
}

func (l *PaymentLedger) ListByOrder(ctx context.Context, orderID string) ([]dompay.Record, error) {
	var rows []orderPaymentDTO
	path := "/order-payments?orderId=" + url.QueryEscape(orderID)
	if err := l.c.Do(ctx, http.MethodGet, "/order-payments", path, nil, &rows); err != nil {
		return nil, err
	}
	out := make([]dompay.Record, 0, len(rows))
	for _, r := range rows {
		typeID, _ := strconv.Atoi(string(r.TypePaymentID))
		out = append(out, dompay.Record{
			ID:            string(r.ID),
			OrderID:       string(r.OrderID),
			PaymentTypeID: typeID,
			Total:         r.Total,
			CreatedAt:     r.CreatedAt,
		})
	}
	return out, nil
}
