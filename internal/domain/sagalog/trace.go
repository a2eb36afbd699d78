package sagalog

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// NewEntry builds an entry stamped with the trace of the span active in ctx.
// Trace fields stay empty when ctx carries no valid span.
func NewEntry(ctx context.Context, sagaID, workflow string, status Status, step, detail string) *Entry {
	e := &Entry{
		SagaID:      sagaID,
		Workflow:    workflow,
		Status:      status,
		CurrentStep: step,
		Detail:      detail,
		UpdatedAt:   time.Now().UTC(),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		e.TraceID = sc.TraceID().String()
		e.SpanID = sc.SpanID().String()
	}
	return e
}
