package httptransport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

type productDTO struct {
	ID    flexID          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

func (p productDTO) toDomain(fallbackID string) *catalog.Product {
	id := string(p.ID)
	if id == "" {
		id = fallbackID
	}
	return &catalog.Product{ID: id, Name: p.Name, Price: p.Price, Stock: p.Stock}
}

type stockDelta struct {
	Amount int `json:"amount"`
}

// ProductDirectory reads products and applies stock deltas over REST.
type ProductDirectory struct {
	c *Client
}

func NewProductDirectory(c *Client) *ProductDirectory {
	return &ProductDirectory{c: c}
}

func (d *ProductDirectory) Get(ctx context.Context, productID string) (*catalog.Product, error) {
	var dto productDTO
	err := d.c.Do(ctx, http.MethodGet, "/products/{id}", "/products/"+url.PathEscape(productID), nil, &dto)
	if IsStatus(err, http.StatusNotFound) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return dto.toDomain(productID), nil
}

// AdjustStock sends PATCH /products/{id}/stock. Besides 404, any other 4xx is the
// directory refusing the delta and maps to catalog.ErrStockRejected.
func (d *ProductDirectory) AdjustStock(ctx context.Context, productID string, delta int) (*catalog.Product, error) {
	var dto productDTO
	err := d.c.Do(ctx, http.MethodPatch, "/products/{id}/stock", "/products/"+url.PathEscape(productID)+"/stock", stockDelta{Amount: delta}, &dto)
	if err != nil {
		var se *StatusError
		switch {
		case IsStatus(err, http.StatusNotFound):
			return nil, catalog.ErrNotFound
		case errors.As(err, &se) && se.Code < 500:
			return nil, fmt.Errorf("%w: %w", catalog.ErrStockRejected, err)
		default:
			return nil, err
		}
	}
	return dto.toDomain(productID), nil
}
