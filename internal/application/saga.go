package application

import (
	"context"

	"github.com/Zhima-Mochi/minishop-orders/internal/domain/sagalog"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
)

// SagaTrail appends workflow steps to the saga log. A nil recorder turns it into a no-op.
// Audit writes never fail a workflow; errors are logged and dropped.
type SagaTrail struct {
	rec      sagalog.Recorder
	workflow string
}

func NewSagaTrail(rec sagalog.Recorder, workflow string) SagaTrail {
	return SagaTrail{rec: rec, workflow: workflow}
}

func (t SagaTrail) Record(ctx context.Context, logger observability.Logger, sagaID string, status sagalog.Status, step, detail string) {
	if t.rec == nil {
		return
	}
	entry := sagalog.NewEntry(ctx, sagaID, t.workflow, status, step, detail)
	if err := t.rec.Record(ctx, entry); err != nil && logger != nil {
		logger.Warn("saga_log_write_failed",
			observability.F("saga_id", sagaID),
			observability.F("step", step),
			observability.Err(err),
		)
	}
}
