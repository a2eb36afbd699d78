// Package prometrics backs the observability metric ports with Prometheus vectors.
package prometrics

import (
	"errors"
	"sync"

	"github.com/Zhima-Mochi/minishop-orders/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry hands out instruments backed by one vector per metric name.
type Registry interface {
	Counter(name, help string, labelKeys ...string) observability.Counter
	Histogram(name, help string, buckets []float64, labelKeys ...string) observability.Histogram
}

type registry struct {
	mu        sync.Mutex
	reg       prometheus.Registerer
	namespace string
	subsystem string
	vecs      map[string]prometheus.Collector
}

// New returns a registry writing to reg; a nil reg means the default Prometheus registerer.
func New(reg prometheus.Registerer, namespace, subsystem string) Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &registry{
		reg:       reg,
		namespace: namespace,
		subsystem: subsystem,
		vecs:      make(map[string]prometheus.Collector),
	}
}

func (r *registry) Counter(name, help string, labelKeys ...string) observability.Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cv, ok := r.vecs[name].(*prometheus.CounterVec); ok {
		return counter{v: cv}
	}
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      name,
		Help:      help,
	}, labelKeys)
	cv = register(r.reg, cv)
	r.vecs[name] = cv
	return counter{v: cv}
}

func (r *registry) Histogram(name, help string, buckets []float64, labelKeys ...string) observability.Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hv, ok := r.vecs[name].(*prometheus.HistogramVec); ok {
		return histogram{v: hv}
	}
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labelKeys)
	hv = register(r.reg, hv)
	r.vecs[name] = hv
	return histogram{v: hv}
}

// register reuses a vector another registry already put on reg under the same
// descriptor. Any other registration error is a programming error.
func register[V prometheus.Collector](reg prometheus.Registerer, v V) V {
	if err := reg.Register(v); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(V); ok {
				return existing
			}
		}
		panic(err)
	}
	return v
}

// Instruments is the observability.Metrics view of a registered definition set.
// Unknown keys resolve to no-ops.
type Instruments struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
}

// Register creates every instrument in defs on r.
func Register(r Registry, defs []observability.MetricDef) *Instruments {
	in := &Instruments{
		counters:   make(map[observability.MetricKey]observability.Counter),
		histograms: make(map[observability.MetricKey]observability.Histogram),
	}
	for _, d := range defs {
		if d.Histogram {
			in.histograms[d.Key] = r.Histogram(string(d.Key), d.Help, nil, d.Labels...)
			continue
		}
		in.counters[d.Key] = r.Counter(string(d.Key), d.Help, d.Labels...)
	}
	return in
}

func (in *Instruments) Counter(key observability.MetricKey) observability.Counter {
	if c, ok := in.counters[key]; ok {
		return c
	}
	return observability.NopCounter()
}

func (in *Instruments) Histogram(key observability.MetricKey) observability.Histogram {
	if h, ok := in.histograms[key]; ok {
		return h
	}
	return observability.NopHistogram()
}

type counter struct{ v *prometheus.CounterVec }

func (c counter) Add(d float64, labels ...observability.Label) {
	c.v.With(labelMap(labels)).Add(d)
}

func (c counter) Bind(labels ...observability.Label) observability.BoundCounter {
	return c.v.With(labelMap(labels))
}

type histogram struct{ v *prometheus.HistogramVec }

func (h histogram) Observe(v float64, labels ...observability.Label) {
	h.v.With(labelMap(labels)).Observe(v)
}

func (h histogram) Bind(labels ...observability.Label) observability.BoundHistogram {
	return h.v.With(labelMap(labels))
}

func labelMap(ls []observability.Label) prometheus.Labels {
	m := make(prometheus.Labels, len(ls))
	for _, l := range ls {
		m[l.Key] = l.Value
	}
	return m
}
