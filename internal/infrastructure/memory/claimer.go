package memory

import (
	"context"
	"sync"
	"time"
)

// Claimer grants a key to the first caller until its ttl runs out.
type Claimer struct {
	mu     sync.Mutex
	now    func() time.Time
	claims map[string]time.Time
}

func NewClaimer() *Claimer {
	return &Claimer{now: time.Now, claims: make(map[string]time.Time)}
}

func (c *Claimer) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if until, ok := c.claims[key]; ok && now.Before(until) {
		return false, nil
	}
	c.claims[key] = now.Add(ttl)

	// drop expired claims so the map does not grow with every order ever claimed
	for k, until := range c.claims {
		if !now.Before(until) {
			delete(c.claims, k)
		}
	}
	return true, nil
}

func (c *Claimer) Release(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.claims, key)
	return nil
}
