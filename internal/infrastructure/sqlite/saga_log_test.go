package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/domain/sagalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func openLog(t *testing.T) *SagaLog {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "saga.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestSagaLogHistoryKeepsInsertionOrder(t *testing.T) {
	l := openLog(t)
	ctx := context.Background()

	steps := []struct {
		status sagalog.Status
		step   string
	}{
		{sagalog.StatusStarted, sagalog.StepAmountMatched},
		{sagalog.StatusStepDone, sagalog.StepAuthorization},
		{sagalog.StatusCompleted, sagalog.StepLedgerSync},
	}
	for _, s := range steps {
		require.NoError(t, l.Record(ctx, sagalog.NewEntry(ctx, "o-1", "payment_settlement", s.status, s.step, "")))
	}
	require.NoError(t, l.Record(ctx, sagalog.NewEntry(ctx, "o-2", "order_creation", sagalog.StatusFailed, sagalog.StepStockSync, "boom")))

	history, err := l.History(ctx, "o-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, s := range steps {
		assert.Equal(t, s.status, history[i].Status)
		assert.Equal(t, s.step, history[i].CurrentStep)
		assert.Equal(t, "payment_settlement", history[i].Workflow)
	}
	assert.WithinDuration(t, time.Now(), history[0].UpdatedAt, time.Minute)

	other, err := l.History(ctx, "o-2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "boom", other[0].Detail)

	none, err := l.History(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSagaLogStoresTraceIDs(t *testing.T) {
	l := openLog(t)
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "settle")
	require.NoError(t, l.Record(ctx, sagalog.NewEntry(ctx, "o-1", "payment_settlement", sagalog.StatusStarted, sagalog.StepAmountMatched, "")))
	span.End()

	history, err := l.History(context.Background(), "o-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, span.SpanContext().TraceID().String(), history[0].TraceID)
	assert.Equal(t, span.SpanContext().SpanID().String(), history[0].SpanID)
}
