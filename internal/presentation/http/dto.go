package httppresentation

import (
	"time"

	domainOrder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domainPayment "github.com/Zhima-Mochi/minishop-orders/internal/domain/payment"
	"github.com/shopspring/decimal"
)

type createOrderItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	UserID   string            `json:"userId"`
	Products []createOrderItem `json:"products"`
}

type paymentItem struct {
	PaymentTypeID int              `json:"paymentTypeId"`
	Total         *decimal.Decimal `json:"total"`
}

type settlePaymentRequest struct {
	Payments []paymentItem `json:"payments"`
}

type lineItemResponse struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type pendingSyncResponse struct {
	Stock  []string `json:"stock"`
	Ledger int      `json:"ledger"`
}

type orderResponse struct {
	ID          string               `json:"id"`
	UserID      string               `json:"userId"`
	Products    []lineItemResponse   `json:"products"`
	TotalValue  decimal.Decimal      `json:"totalValue"`
	Status      domainOrder.Status   `json:"status"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
	PendingSync *pendingSyncResponse `json:"pendingSync,omitempty"`
}

func toOrderResponse(o *domainOrder.Order) orderResponse {
	items := make([]lineItemResponse, 0, len(o.Items))
	for _, li := range o.Items {
		items = append(items, lineItemResponse{
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
		})
	}
	resp := orderResponse{
		ID:         o.ID,
		UserID:     o.UserID,
		Products:   items,
		TotalValue: o.Total,
		Status:     o.Status,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
	if o.HasPendingSync() {
		pending := &pendingSyncResponse{Stock: []string{}, Ledger: len(o.UnrecordedPayments())}
		for _, i := range o.UnsyncedItems() {
			pending.Stock = append(pending.Stock, o.Items[i].ProductID)
		}
		resp.PendingSync = pending
	}
	return resp
}

func toOrderList(orders []*domainOrder.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

type settlePaymentResponse struct {
	Decision domainPayment.Decision `json:"decision"`
	Order    orderResponse          `json:"order"`
}

type paymentRecordResponse struct {
	ID            string          `json:"id,omitempty"`
	OrderID       string          `json:"orderId"`
	Total         decimal.Decimal `json:"total"`
	TypePaymentID int             `json:"typePaymentId"`
	CreatedAt     *time.Time      `json:"createdAt,omitempty"`
}

func toPaymentRecords(records []domainPayment.Record) []paymentRecordResponse {
	out := make([]paymentRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, paymentRecordResponse{
			ID:            r.ID,
			OrderID:       r.OrderID,
			Total:         r.Total,
			TypePaymentID: r.PaymentTypeID,
			CreatedAt:     r.CreatedAt,
		})
	}
	return out
}

// errorResponse names the failing entity and id whenever the error carries them.
type errorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Entity  string         `json:"entity,omitempty"`
	ID      string         `json:"id,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Order   *orderResponse `json:"order,omitempty"`
}
