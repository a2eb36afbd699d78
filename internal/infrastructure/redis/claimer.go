// Package redis provides a cluster-wide claimer so only one replica reconciles
// a given order at a time.
package redis

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "minishop-orders"

// releaseScript deletes the claim only while it still carries our owner value,
// so an expired claim taken over by another replica is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Claimer grants a key to the first caller until its TTL runs out.
type Claimer struct {
	rdb    redis.UniversalClient
	prefix string
	owner  string
}

func NewClaimer(rdb redis.UniversalClient, prefix string) *Claimer {
	if prefix == "" {
		prefix = defaultPrefix
	}
	host, _ := os.Hostname()
	return &Claimer{
		rdb:    rdb,
		prefix: prefix,
		owner:  fmt.Sprintf("%s:%d", host, os.Getpid()),
	}
}

// NewClient builds a client for addr and checks it answers.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return rdb, nil
}

// Claim reports whether this process now holds key. An unavailable Redis is an
// error, not a refusal.
func (c *Claimer) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, c.key(key), c.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: claim %s: %w", key, err)
	}
	return ok, nil
}

func (c *Claimer) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, c.rdb, []string{c.key(key)}, c.owner).Err(); err != nil {
		return fmt.Errorf("redis: release %s: %w", key, err)
	}
	return nil
}

func (c *Claimer) key(k string) string {
	return c.prefix + ":claim:" + k
}
