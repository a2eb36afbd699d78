package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id             TEXT PRIMARY KEY,
	user_id        TEXT        NOT NULL,
	total          NUMERIC     NOT NULL,
	status         TEXT        NOT NULL,
	failure_reason TEXT        NOT NULL DEFAULT '',
	pending_sync   BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	version        BIGINT      NOT NULL DEFAULT 1
);
ALTER TABLE orders ADD COLUMN IF NOT EXISTS version BIGINT NOT NULL DEFAULT 1;
CREATE INDEX IF NOT EXISTS orders_user_id_idx ON orders (user_id, created_at);
CREATE INDEX IF NOT EXISTS orders_pending_sync_idx ON orders (updated_at) WHERE pending_sync;

CREATE TABLE IF NOT EXISTS order_items (
	order_id     TEXT    NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
	position     INT     NOT NULL,
	product_id   TEXT    NOT NULL,
	quantity     INT     NOT NULL CHECK (quantity > 0),
	unit_price   NUMERIC NOT NULL,
	stock_synced BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (order_id, position)
);

CREATE TABLE IF NOT EXISTS order_payments (
	order_id        TEXT    NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
	position        INT     NOT NULL,
	payment_type_id INT     NOT NULL,
	amount          NUMERIC NOT NULL,
	recorded        BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (order_id, position)
);
`

// Migrate creates the order tables when they do not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Connect opens a pool and checks it answers.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}
