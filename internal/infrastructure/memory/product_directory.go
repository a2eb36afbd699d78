package memory

import (
	"context"
	"sync"

	"github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"
)

// ProductDirectory is an in-process Product Directory. AdjustStock checks and
// applies the delta under one lock, so the stock floor holds under concurrency.
type ProductDirectory struct {
	mu       sync.RWMutex
	products map[string]*catalog.Product
}

func NewProductDirectory(seed ...catalog.Product) *ProductDirectory {
	d := &ProductDirectory{products: make(map[string]*catalog.Product, len(seed))}
	for _, p := range seed {
		d.Put(p)
	}
	return d
}

// Put inserts or replaces a product.
func (d *ProductDirectory) Put(p catalog.Product) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.products[p.ID] = cloneProduct(&p)
}

func (d *ProductDirectory) Get(ctx context.Context, productID string) (*catalog.Product, error) {
	_ = ctx

	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.products[productID]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (d *ProductDirectory) AdjustStock(ctx context.Context, productID string, delta int) (*catalog.Product, error) {
	_ = ctx

	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.products[productID]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	if err := p.Adjust(delta); err != nil {
		return nil, err
	}
	return cloneProduct(p), nil
}

func cloneProduct(p *catalog.Product) *catalog.Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
