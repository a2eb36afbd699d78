package oteltrace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracerStampsFixedAttributes(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tr := New("", attribute.String("service.layer", "application"))
	_, span := tr.Start(context.Background(), "UC.CreateOrder", attribute.String("order.user_id", "u-1"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "UC.CreateOrder", ended[0].Name())
	assert.Equal(t, defaultName, ended[0].InstrumentationScope().Name)
	assert.ElementsMatch(t, []attribute.KeyValue{
		attribute.String("service.layer", "application"),
		attribute.String("order.user_id", "u-1"),
	}, ended[0].Attributes())
}

func TestSetupWithoutEndpointKeepsSpansLocal(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	shutdown, err := Setup(context.Background(), "minishop-orders", "test", "")
	require.NoError(t, err)

	_, span := New("").Start(context.Background(), "setup-check")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
	require.NoError(t, shutdown(context.Background()))
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "collector:4317", stripScheme("http://collector:4317"))
	assert.Equal(t, "collector:4317", stripScheme("collector:4317"))
}
