// Package sqlite keeps the order workflow audit trail in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/domain/sagalog"

	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS saga_logs (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    saga_id      TEXT NOT NULL,
    workflow     TEXT NOT NULL,
    status       TEXT NOT NULL,
    current_step TEXT NOT NULL DEFAULT '',
    detail       TEXT NOT NULL DEFAULT '',
    trace_id     TEXT NOT NULL DEFAULT '',
    span_id      TEXT NOT NULL DEFAULT '',
    updated_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_saga_logs_saga_id ON saga_logs(saga_id, id);
CREATE INDEX IF NOT EXISTS idx_saga_logs_trace_id ON saga_logs(trace_id);
`

// SagaLog is an append-only sagalog.Recorder.
type SagaLog struct {
	db *sql.DB
}

var _ sagalog.Recorder = (*SagaLog)(nil)

// Open creates or opens the database at path in WAL mode and applies the schema.
func Open(path string) (*SagaLog, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// One writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &SagaLog{db: db}, nil
}

func (l *SagaLog) Close() error {
	return l.db.Close()
}

func (l *SagaLog) Record(ctx context.Context, e *sagalog.Entry) error {
	if e == nil {
		return nil
	}
	updatedAt := e.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO saga_logs
			(saga_id, workflow, status, current_step, detail, trace_id, span_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SagaID, e.Workflow, string(e.Status), e.CurrentStep, e.Detail,
		e.TraceID, e.SpanID, updatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("sqlite: record saga log for %q: %w", e.SagaID, err)
	}
	return nil
}

// History returns every entry of a saga in insertion order.
func (l *SagaLog) History(ctx context.Context, sagaID string) ([]sagalog.Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT saga_id, workflow, status, current_step, detail, trace_id, span_id, updated_at
		FROM   saga_logs
		WHERE  saga_id = ?
		ORDER  BY id`, sagaID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: history for %q: %w", sagaID, err)
	}
	defer rows.Close()

	var out []sagalog.Entry
	for rows.Next() {
		var (
			e         sagalog.Entry
			status    string
			updatedAt string
		)
		if err := rows.Scan(&e.SagaID, &e.Workflow, &status, &e.CurrentStep, &e.Detail,
			&e.TraceID, &e.SpanID, &updatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan saga log: %w", err)
		}
		e.Status = sagalog.Status(status)
		if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: parse time %q: %w", updatedAt, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
