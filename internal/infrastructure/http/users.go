package httptransport

import (
	"context"
	"net/http"
	"net/url"

	domorder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
)

// UserDirectory checks user existence with GET /users/{id}.
type UserDirectory struct {
	c *Client
}

func NewUserDirectory(c *Client) *UserDirectory {
	return &UserDirectory{c: c}
}

func (d *UserDirectory) Exists(ctx context.Context, userID string) error {
	err := d.c.Do(ctx, http.MethodGet, "/users/{id}", "/users/"+url.PathEscape(userID), nil, nil)
	if IsStatus(err, http.StatusNotFound) {
		return domorder.ErrUserNotFound
	}
	return err
}
