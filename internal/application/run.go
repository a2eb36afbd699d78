package application

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const SpanPrefix = "UC."

// Instruments holds the RED metrics shared by every use case. Build it once at
// construction time and start a Run per execution.
type Instruments struct {
	tel          observability.Observability
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewInstruments(tel observability.Observability) Instruments {
	tel = observability.OrNop(tel)
	return Instruments{
		tel:          tel,
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

// Run tracks a single use case execution. End closes the span, records the
// metrics and writes the use_case_done line.
type Run struct {
	Logger observability.Logger

	ctx     context.Context
	span    trace.Span
	start   time.Time
	useCase string
	outcome string
	status  string
	fields  []observability.Field
	inst    Instruments
}

// Start opens the span and binds the use case name to the request logger found on ctx
// (or base). The returned context carries both.
func (in Instruments) Start(ctx context.Context, base observability.Logger, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Run) {
	if in.tel == nil {
		in = NewInstruments(nil)
	}
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := in.tel.Tracer().Start(ctx, SpanPrefix+spanName, attrs...)

	ctx, logger := logctx.Enrich(ctx, base, observability.F("use_case", useCase))
	return ctx, &Run{
		Logger:  logger,
		ctx:     ctx,
		span:    span,
		start:   time.Now(),
		useCase: useCase,
		outcome: "success",
		status:  "OK",
		inst:    in,
	}
}

func (r *Run) Span() trace.Span { return r.span }

// Fail marks the execution as an error with a machine-readable status.
func (r *Run) Fail(status string) {
	r.outcome, r.status = "error", status
}

// Outcome overrides both labels, e.g. "declined" or "skipped".
func (r *Run) Outcome(outcome, status string) {
	r.outcome, r.status = outcome, status
}

// Status changes the status text without touching the outcome.
func (r *Run) Status(status string) {
	r.status = status
}

// With adds fields to the closing log line.
func (r *Run) With(fields ...observability.Field) {
	r.fields = append(r.fields, fields...)
}

func (r *Run) End(err error) {
	lat := time.Since(r.start).Seconds()
	if err != nil && r.outcome == "success" {
		r.outcome = "error"
		if r.status == "OK" {
			r.status = "FAILED"
		}
	}

	if r.span != nil {
		if err != nil {
			r.span.RecordError(err)
			r.span.SetStatus(codes.Error, r.status)
		} else {
			r.span.SetStatus(codes.Ok, r.status)
		}
		r.span.End()
	}

	r.inst.reqCounter.Add(1,
		observability.L("use_case", r.useCase),
		observability.L("outcome", r.outcome),
	)
	r.inst.durHistogram.Observe(lat,
		observability.L("use_case", r.useCase),
	)

	fields := append([]observability.Field{
		observability.F("outcome", r.outcome),
		observability.F("status", r.status),
		observability.F("latency_seconds", lat),
	}, r.fields...)
	if sc := trace.SpanContextFromContext(r.ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	if err != nil {
		fields = append(fields, observability.Err(err))
	}
	r.Logger.Info("use_case_done", fields...)
}
