package outbox

import (
	"context"
	"sync"
	"testing"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type pinged struct{ id string }

func (pinged) EventName() string { return "test.pinged" }

func TestBusDeliversToEverySubscriberWithPublisherTrace(t *testing.T) {
	bus := NewBus(nil)
	var (
		mu     sync.Mutex
		got    []string
		traces []trace.TraceID
		wg     sync.WaitGroup
	)
	wg.Add(2)
	handler := func(ctx context.Context, e domoutbox.Event) error {
		defer wg.Done()
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.(pinged).id)
		traces = append(traces, trace.SpanContextFromContext(ctx).TraceID())
		return nil
	}
	bus.Subscribe("test.pinged", handler)
	bus.Subscribe("test.pinged", handler)
	bus.Start(context.Background())

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	require.NoError(t, bus.Publish(ctx, pinged{id: "a"}))
	span.End()

	waitOrFail(t, &wg)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "a"}, got)
	for _, id := range traces {
		assert.Equal(t, span.SpanContext().TraceID(), id)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	bus.Stop(stopCtx)
}

func TestBusSurvivesPanickingHandler(t *testing.T) {
	bus := NewBus(nil)
	var wg sync.WaitGroup
	wg.Add(1)
	bus.Subscribe("test.pinged", func(context.Context, domoutbox.Event) error { panic("boom") })
	bus.Subscribe("test.pinged", func(context.Context, domoutbox.Event) error { wg.Done(); return nil })
	bus.Start(context.Background())

	require.NoError(t, bus.Publish(context.Background(), pinged{id: "x"}))
	waitOrFail(t, &wg)
	bus.Stop(context.Background())
}

func TestBusRejectsPublishAfterStop(t *testing.T) {
	bus := NewBus(nil)
	bus.Start(context.Background())
	bus.Stop(context.Background())

	assert.ErrorIs(t, bus.Publish(context.Background(), pinged{id: "late"}), ErrClosed)
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handlers did not run")
	}
}
