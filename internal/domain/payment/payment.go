package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entry is one payment recorded against an order in the Payment Ledger.
type Entry struct {
	OrderID       string
	PaymentTypeID int
	Total         decimal.Decimal
}

// Record is an Entry as returned by the ledger lookup.
type Record struct {
	ID            string
	OrderID       string
	PaymentTypeID int
	Total         decimal.Decimal
	CreatedAt     *time.Time
}
