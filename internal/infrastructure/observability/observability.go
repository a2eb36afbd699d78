// Package observability assembles the concrete tracer, logger and Prometheus
// instruments behind the observability ports.
package observability

import (
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
)

type provider struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics observability.Metrics
}

// New bundles the parts; any nil part falls back to its no-op.
func New(tracer observability.Tracer, logger observability.Logger, metrics observability.Metrics) observability.Observability {
	p := &provider{tracer: tracer, logger: logger, metrics: metrics}
	if p.tracer == nil {
		p.tracer = observability.NopTracer()
	}
	if p.logger == nil {
		p.logger = observability.NopLogger()
	}
	if p.metrics == nil {
		p.metrics = observability.NopMetrics()
	}
	return p
}

// NewWithRegistry registers every instrument in observability.Definitions on reg.
func NewWithRegistry(tracer observability.Tracer, logger observability.Logger, reg prometrics.Registry) observability.Observability {
	return New(tracer, logger, prometrics.Register(reg, observability.Definitions))
}

func (p *provider) Tracer() observability.Tracer   { return p.tracer }
func (p *provider) Logger() observability.Logger   { return p.logger }
func (p *provider) Metrics() observability.Metrics { return p.metrics }
