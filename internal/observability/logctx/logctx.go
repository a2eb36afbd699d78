// Package logctx carries the request or delivery scoped logger through a context.
package logctx

import (
	"context"

	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
)

type key struct{}

// With returns ctx carrying logger. A nil logger leaves ctx untouched.
func With(ctx context.Context, logger observability.Logger) context.Context {
	if logger == nil {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key{}, logger)
}

// From returns the scoped logger, or nil when none was stored.
func From(ctx context.Context) observability.Logger {
	if ctx == nil {
		return nil
	}
	l, _ := ctx.Value(key{}).(observability.Logger)
	return l
}

func FromOr(ctx context.Context, fallback observability.Logger) observability.Logger {
	if l := From(ctx); l != nil {
		return l
	}
	if fallback == nil {
		return observability.NopLogger()
	}
	return fallback
}

// Enrich adds fields to the scoped logger and stores the result back, so
// everything downstream of a use case logs with its identifiers.
func Enrich(ctx context.Context, fallback observability.Logger, fields ...observability.Field) (context.Context, observability.Logger) {
	l := FromOr(ctx, fallback)
	if len(fields) > 0 {
		l = l.With(fields...)
	}
	return With(ctx, l), l
}
