package catalog

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("catalog: product not found")
	ErrInvalidQuantity = errors.New("catalog: quantity must be greater than zero")
	// ErrStockRejected is returned when a stock adjustment would take stock below zero.
	ErrStockRejected = errors.New("catalog: stock adjustment rejected")
)

// Product is a point-in-time snapshot of a Product Directory record.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Stock int
}

// Covers reports whether the observed stock can satisfy the requested quantity.
func (p *Product) Covers(quantity int) bool {
	return quantity > 0 && quantity <= p.Stock
}

// Adjust applies a signed stock delta, refusing to go below zero.
func (p *Product) Adjust(delta int) error {
	if p.Stock+delta < 0 {
		return ErrStockRejected
	}
	p.Stock += delta
	return nil
}
