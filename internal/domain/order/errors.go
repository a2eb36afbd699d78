package order

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Error kinds. Every failure surfaced by the order workflows unwraps to exactly one of these.
var (
	ErrValidation             = errors.New("validation error")
	ErrUserNotFound           = errors.New("user not found")
	ErrProductNotFound        = errors.New("product not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrNotFound               = errors.New("order not found")
	ErrNotSettleable          = errors.New("order not settleable")
	ErrAmountMismatch         = errors.New("payment amount mismatch")
	ErrUpstreamUnavailable    = errors.New("upstream unavailable")
	ErrStockSync              = errors.New("stock sync failure")
	ErrLedgerSync             = errors.New("ledger sync failure")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
	ErrConflict               = errors.New("order: conflict")
)

// Error carries a kind plus the entity that caused it, so callers can build a
// message naming the failing id without parsing strings.
type Error struct {
	Kind    error
	Entity  string
	ID      string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("order error")
	}
	if e.Entity != "" && e.ID != "" {
		fmt.Fprintf(&b, " (%s %s)", e.Entity, e.ID)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func NewValidationError(msg string) *Error {
	return &Error{Kind: ErrValidation, Message: msg}
}

func NewUserNotFoundError(userID string) *Error {
	return &Error{Kind: ErrUserNotFound, Entity: "user", ID: userID, Message: "user does not exist"}
}

func NewProductNotFoundError(productID string) *Error {
	return &Error{Kind: ErrProductNotFound, Entity: "product", ID: productID, Message: "product does not exist"}
}

func NewInsufficientStockError(productID string, requested, available int) *Error {
	return &Error{
		Kind:    ErrInsufficientStock,
		Entity:  "product",
		ID:      productID,
		Message: fmt.Sprintf("requested %d, available %d", requested, available),
		Details: map[string]any{"requested": requested, "available": available},
	}
}

func NewNotFoundError(orderID string) *Error {
	return &Error{Kind: ErrNotFound, Entity: "order", ID: orderID, Message: "order does not exist"}
}

func NewNotSettleableError(orderID string, status Status) *Error {
	return &Error{
		Kind:    ErrNotSettleable,
		Entity:  "order",
		ID:      orderID,
		Message: fmt.Sprintf("order with status %q cannot be settled", status),
		Details: map[string]any{"status": string(status)},
	}
}

func NewAmountMismatchError(orderID string, expected, submitted decimal.Decimal) *Error {
	return &Error{
		Kind:    ErrAmountMismatch,
		Entity:  "order",
		ID:      orderID,
		Message: fmt.Sprintf("payments total %s does not match order total %s", submitted.String(), expected.String()),
		Details: map[string]any{"expected": expected.String(), "submitted": submitted.String()},
	}
}

func NewUpstreamUnavailableError(entity, id string, cause error) *Error {
	return &Error{Kind: ErrUpstreamUnavailable, Entity: entity, ID: id, Message: entity + " directory unavailable", Err: cause}
}

func NewStockSyncError(orderID, productID string, cause error) *Error {
	return &Error{
		Kind:    ErrStockSync,
		Entity:  "product",
		ID:      productID,
		Message: "stock decrement failed; order " + orderID + " remains pending payment",
		Details: map[string]any{"orderId": orderID},
		Err:     cause,
	}
}

func NewLedgerSyncError(orderID string, paymentTypeID int, cause error) *Error {
	return &Error{
		Kind:    ErrLedgerSync,
		Entity:  "order",
		ID:      orderID,
		Message: fmt.Sprintf("recording payment of type %d failed; order stays paid", paymentTypeID),
		Details: map[string]any{"paymentTypeId": paymentTypeID},
		Err:     cause,
	}
}
