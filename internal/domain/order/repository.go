package order

import (
	"context"
	"errors"
	"time"
)

// Filter narrows List results. A zero Filter lists every order.
type Filter struct {
	UserID string
}

// Repository is the Order Store. Get returns ErrNotFound for unknown ids and
// Insert returns ErrConflict for duplicate ids.
//
// Update is a compare-and-swap on Version: it fails with ErrConflict when the
// stored order moved on since order was read. Insert and Update set the new
// Version on order when they succeed.
type Repository interface {
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, order *Order) error
	List(ctx context.Context, filter Filter) ([]*Order, error)
	// ListPendingSync returns orders with owed stock or ledger side effects that
	// were last touched before the cutoff, oldest first.
	ListPendingSync(ctx context.Context, updatedBefore time.Time, limit int) ([]*Order, error)
}

const mutateAttempts = 5

// Mutate reads the current order, applies fn and writes it back, starting over
// from a fresh read when a concurrent writer got there first. fn may run more
// than once and must only express the change it owns. An error from fn stops
// the loop and is returned as is.
func Mutate(ctx context.Context, repo Repository, id string, fn func(*Order) error) (*Order, error) {
	var err error
	for range mutateAttempts {
		var current *Order
		if current, err = repo.Get(ctx, id); err != nil {
			return nil, err
		}
		if err = fn(current); err != nil {
			return nil, err
		}
		if err = repo.Update(ctx, current); err == nil {
			return current, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
	}
	return nil, err
}
