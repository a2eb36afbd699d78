// Package oteltrace adapts OpenTelemetry to the observability.Tracer port and
// installs the process-wide provider.
package oteltrace

import (
	"context"

	"github.com/Zhima-Mochi/minishop-orders/internal/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultName = "minishop-orders"

type tracer struct {
	name  string
	fixed []attribute.KeyValue
}

// New returns a tracer that resolves the global provider on every span, so it
// may be built before Setup runs. fixed attributes are stamped on every span.
func New(name string, fixed ...attribute.KeyValue) observability.Tracer {
	if name == "" {
		name = defaultName
	}
	return &tracer{name: name, fixed: fixed}
}

func (t *tracer) Start(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, len(t.fixed)+len(attrs))
	all = append(all, t.fixed...)
	all = append(all, attrs...)
	return otel.Tracer(t.name).Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(all...),
	)
}
