// Package application orchestrates the order workflows. Each workflow is a use
// case wrapped in the same span, metrics and use_case_done log line.
package application

import "context"

// UseCase is what the presentation layer drives: one command in, one result out.
type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

// UseCaseFunc adapts a plain function to UseCase.
type UseCaseFunc[C any, R any] func(ctx context.Context, cmd C) (R, error)

func (f UseCaseFunc[C, R]) Execute(ctx context.Context, cmd C) (R, error) {
	return f(ctx, cmd)
}
