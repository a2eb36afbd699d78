package workerpresentation

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// WithEventContext stores a logger for one event delivery on ctx. Each delivery
// gets its own delivery_id; the event name, the order it belongs to and the
// publisher's trace ids are attached when known. extra must stay low-cardinality.
func WithEventContext(ctx context.Context, base observability.Logger, e domoutbox.Event, extra ...observability.Field) context.Context {
	if base == nil {
		base = observability.NopLogger()
	}

	fields := make([]observability.Field, 0, 5+len(extra))
	fields = append(fields, observability.F("delivery_id", uuid.NewString()))
	if e != nil {
		fields = append(fields, observability.F("event", e.EventName()))
		if key := domoutbox.KeyOf(e); key != "" {
			fields = append(fields, observability.F("order_id", key))
		}
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	fields = append(fields, extra...)

	return logctx.With(ctx, base.With(fields...))
}
