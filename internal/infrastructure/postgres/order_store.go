package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

// OrderStore keeps orders in three tables: the order row, its line items and its
// payments. Every write touches all three inside one transaction.
type OrderStore struct {
	pool *pgxpool.Pool
	log  observability.Logger
}

var _ domain.Repository = (*OrderStore)(nil)

func NewOrderStore(pool *pgxpool.Pool, logger observability.Logger) *OrderStore {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &OrderStore{pool: pool, log: logger.With(observability.F("component", "order_store"))}
}

func (s *OrderStore) Insert(ctx context.Context, o *domain.Order) error {
	if o == nil {
		return errors.New("postgres: nil order")
	}
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (id, user_id, total, status, failure_reason, pending_sync, created_at, updated_at, version)
			VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, 1)`,
			o.ID, o.UserID, o.Total.String(), string(o.Status), o.FailureReason, o.HasPendingSync(), o.CreatedAt, o.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("%w: %s", domain.ErrConflict, o.ID)
			}
			return err
		}
		return s.writeChildren(ctx, tx, o, false)
	})
	if err == nil {
		o.Version = 1
	}
	return err
}

// Update only applies when the row is still at o.Version. Status, flags and the
// payment set are rewritten together, so a stale copy never lands.
func (s *OrderStore) Update(ctx context.Context, o *domain.Order) error {
	if o == nil {
		return errors.New("postgres: nil order")
	}
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE orders
			SET status = $2, failure_reason = $3, pending_sync = $4, updated_at = $5, version = version + 1
			WHERE id = $1 AND version = $6`,
			o.ID, string(o.Status), o.FailureReason, o.HasPendingSync(), o.UpdatedAt, o.Version)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, o.ID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return domain.ErrNotFound
			}
			return fmt.Errorf("%w: order %s changed since version %d", domain.ErrConflict, o.ID, o.Version)
		}
		return s.writeChildren(ctx, tx, o, true)
	})
	if err == nil {
		o.Version++
	}
	return err
}

// writeChildren queues the item and payment rows in one batch. On update the
// line items only change their sync flag and the payment set is rewritten.
func (s *OrderStore) writeChildren(ctx context.Context, tx pgx.Tx, o *domain.Order, replace bool) error {
	batch := &pgx.Batch{}
	for i, item := range o.Items {
		batch.Queue(`
			INSERT INTO order_items (order_id, position, product_id, quantity, unit_price, stock_synced)
			VALUES ($1, $2, $3, $4, $5::numeric, $6)
			ON CONFLICT (order_id, position) DO UPDATE SET stock_synced = EXCLUDED.stock_synced`,
			o.ID, i, item.ProductID, item.Quantity, item.UnitPrice.String(), item.StockSynced)
	}
	if replace {
		batch.Queue(`DELETE FROM order_payments WHERE order_id = $1`, o.ID)
	}
	for i, p := range o.Payments {
		batch.Queue(`
			INSERT INTO order_payments (order_id, position, payment_type_id, amount, recorded)
			VALUES ($1, $2, $3, $4::numeric, $5)`,
			o.ID, i, p.PaymentTypeID, p.Amount.String(), p.Recorded)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (s *OrderStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	rows, err := s.pool.Query(ctx, selectOrders+` WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: get order: %w", err)
	}
	orders, err := s.collect(ctx, rows)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, domain.ErrNotFound
	}
	return orders[0], nil
}

func (s *OrderStore) List(ctx context.Context, filter domain.Filter) ([]*domain.Order, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if filter.UserID != "" {
		rows, err = s.pool.Query(ctx, selectOrders+` WHERE user_id = $1 ORDER BY created_at, id`, filter.UserID)
	} else {
		rows, err = s.pool.Query(ctx, selectOrders+` ORDER BY created_at, id`)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders: %w", err)
	}
	return s.collect(ctx, rows)
}

func (s *OrderStore) ListPendingSync(ctx context.Context, updatedBefore time.Time, limit int) ([]*domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, selectOrders+`
		WHERE pending_sync AND updated_at < $1
		ORDER BY updated_at, id
		LIMIT $2`, updatedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending sync: %w", err)
	}
	return s.collect(ctx, rows)
}

const selectOrders = `
	SELECT id, user_id, total::text, status, failure_reason, created_at, updated_at, version
	FROM orders`

// collect scans order rows and then loads their items and payments with one
// query each.
func (s *OrderStore) collect(ctx context.Context, rows pgx.Rows) ([]*domain.Order, error) {
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Order, error) {
		var (
			o      domain.Order
			total  string
			status string
		)
		if err := row.Scan(&o.ID, &o.UserID, &total, &status, &o.FailureReason, &o.CreatedAt, &o.UpdatedAt, &o.Version); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(total)
		if err != nil {
			return nil, fmt.Errorf("order %s total: %w", o.ID, err)
		}
		o.Total = d
		o.Status = domain.Status(status)
		return &o, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	byID := make(map[string]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}
	if err := s.loadItems(ctx, ids, byID); err != nil {
		return nil, err
	}
	if err := s.loadPayments(ctx, ids, byID); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *OrderStore) loadItems(ctx context.Context, ids []string, byID map[string]*domain.Order) error {
	rows, err := s.pool.Query(ctx, `
		SELECT order_id, product_id, quantity, unit_price::text, stock_synced
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`, ids)
	if err != nil {
		return fmt.Errorf("postgres: load items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID, price string
			item           domain.LineItem
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.Quantity, &price, &item.StockSynced); err != nil {
			return fmt.Errorf("postgres: scan item: %w", err)
		}
		if item.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("postgres: item price of order %s: %w", orderID, err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}

func (s *OrderStore) loadPayments(ctx context.Context, ids []string, byID map[string]*domain.Order) error {
	rows, err := s.pool.Query(ctx, `
		SELECT order_id, payment_type_id, amount::text, recorded
		FROM order_payments
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`, ids)
	if err != nil {
		return fmt.Errorf("postgres: load payments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID, amount string
			p               domain.Payment
		)
		if err := rows.Scan(&orderID, &p.PaymentTypeID, &amount, &p.Recorded); err != nil {
			return fmt.Errorf("postgres: scan payment: %w", err)
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return fmt.Errorf("postgres: payment amount of order %s: %w", orderID, err)
		}
		if o, ok := byID[orderID]; ok {
			o.Payments = append(o.Payments, p)
		}
	}
	return rows.Err()
}

func (s *OrderStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrConflict) {
			logctx.FromOr(ctx, s.log).Warn("order_store_write_failed", observability.Err(err))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}
