package memory

import (
	"context"
	"sync"

	domorder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
)

type UserDirectory struct {
	mu    sync.RWMutex
	users map[string]struct{}
}

func NewUserDirectory(ids ...string) *UserDirectory {
	d := &UserDirectory{users: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		d.users[id] = struct{}{}
	}
	return d
}

func (d *UserDirectory) Add(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[id] = struct{}{}
}

func (d *UserDirectory) Exists(ctx context.Context, userID string) error {
	_ = ctx

	d.mu.RLock()
	defer d.mu.RUnlock()

	if _, ok := d.users[userID]; !ok {
		return domorder.ErrUserNotFound
	}
	return nil
}
