package order

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPaymentFailed  Status = "payment_failed"
	StatusPaid           Status = "paid"
	StatusCancelled      Status = "cancelled"
)

// LineItem is one product/quantity pair with the unit price captured at creation.
// StockSynced records whether the remote stock decrement for this item has been applied.
type LineItem struct {
	ProductID   string
	Quantity    int
	UnitPrice   decimal.Decimal
	StockSynced bool
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Payment is one entry of an authorized payment set. Recorded flips once the
// Payment Ledger has accepted the entry.
type Payment struct {
	PaymentTypeID int
	Amount        decimal.Decimal
	Recorded      bool
}

type Order struct {
	ID            string
	UserID        string
	Items         []LineItem
	Total         decimal.Decimal
	Status        Status
	Payments      []Payment
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	// Version is owned by the Repository: Insert sets it to 1 and every
	// successful Update bumps it.
	Version int64
}

// New builds a PendingPayment order from priced line items. The total is computed
// once here and never recomputed from live prices.
func New(id, userID string, items []LineItem) (*Order, error) {
	if id == "" {
		return nil, NewValidationError("order id is required")
	}
	if userID == "" {
		return nil, NewValidationError("userId is required")
	}
	if len(items) == 0 {
		return nil, NewValidationError("order must contain at least one product")
	}

	total := decimal.Zero
	copied := make([]LineItem, 0, len(items))
	for i, item := range items {
		if item.ProductID == "" {
			return nil, NewValidationError(fmt.Sprintf("products[%d].productId is required", i))
		}
		if item.Quantity <= 0 {
			return nil, NewValidationError(fmt.Sprintf("products[%d].quantity must be greater than zero", i))
		}
		if item.UnitPrice.IsNegative() {
			return nil, NewValidationError(fmt.Sprintf("products[%d] has a negative unit price", i))
		}
		item.StockSynced = false
		copied = append(copied, item)
		total = total.Add(item.Subtotal())
	}

	now := time.Now().UTC()
	return &Order{
		ID:        id,
		UserID:    userID,
		Items:     copied,
		Total:     total,
		Status:    StatusPendingPayment,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanSettle reports whether a settlement attempt is allowed from the current status.
func (o *Order) CanSettle() bool {
	st := stateFor(o.Status)
	return st != nil && st.CanSettle()
}

// PaymentAuthorized moves the order to Paid and keeps the payment set for ledger sync.
func (o *Order) PaymentAuthorized(payments []Payment) error {
	st := stateFor(o.Status)
	if st == nil {
		return ErrInvalidStateTransition
	}
	next, err := st.OnPaymentAuthorized(o)
	if err != nil {
		return err
	}
	o.Payments = make([]Payment, len(payments))
	for i, p := range payments {
		p.Recorded = false
		o.Payments[i] = p
	}
	o.apply(next)
	return nil
}

func (o *Order) PaymentDeclined(reason string) error {
	st := stateFor(o.Status)
	if st == nil {
		return ErrInvalidStateTransition
	}
	next, err := st.OnPaymentDeclined(o, reason)
	if err != nil {
		return err
	}
	o.apply(next)
	return nil
}

// Cancel is reserved for a cancellation path that no workflow in this service drives.
func (o *Order) Cancel(reason string) error {
	st := stateFor(o.Status)
	if st == nil {
		return ErrInvalidStateTransition
	}
	next, err := st.OnCancelled(o, reason)
	if err != nil {
		return err
	}
	o.apply(next)
	return nil
}

// UnsyncedItems returns the indexes of line items whose stock decrement is still owed.
func (o *Order) UnsyncedItems() []int {
	var out []int
	for i, item := range o.Items {
		if !item.StockSynced {
			out = append(out, i)
		}
	}
	return out
}

// UnrecordedPayments returns the indexes of authorized payments missing from the ledger.
func (o *Order) UnrecordedPayments() []int {
	if o.Status != StatusPaid {
		return nil
	}
	var out []int
	for i, p := range o.Payments {
		if !p.Recorded {
			out = append(out, i)
		}
	}
	return out
}

func (o *Order) HasPendingSync() bool {
	return len(o.UnsyncedItems()) > 0 || len(o.UnrecordedPayments()) > 0
}

func (o *Order) MarkStockSynced(i int) {
	if i < 0 || i >= len(o.Items) {
		return
	}
	o.Items[i].StockSynced = true
	o.touch()
}

func (o *Order) MarkPaymentRecorded(i int) {
	if i < 0 || i >= len(o.Payments) {
		return
	}
	o.Payments[i].Recorded = true
	o.touch()
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]LineItem(nil), o.Items...)
	clone.Payments = append([]Payment(nil), o.Payments...)
	return &clone
}

func (o *Order) apply(next OrderState) {
	o.Status = next.Status()
	o.touch()
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}

// SumPayments adds up the amounts of a payment set.
func SumPayments(payments []Payment) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range payments {
		sum = sum.Add(p.Amount)
	}
	return sum
}
