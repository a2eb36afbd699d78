package observability

// MetricKey names a registered instrument. Instruments are declared once in
// Definitions; looking up an unknown key yields a no-op.
type MetricKey string

type Metrics interface {
	Counter(name MetricKey) Counter
	Histogram(name MetricKey) Histogram
}

type Counter interface {
	Add(delta float64, labels ...Label)
	Bind(labels ...Label) BoundCounter
}

// BoundCounter has its labels fixed up front, for hot paths.
type BoundCounter interface {
	Add(delta float64)
}

type Histogram interface {
	Observe(value float64, labels ...Label)
	Bind(labels ...Label) BoundHistogram
}

type BoundHistogram interface {
	Observe(value float64)
}

type Label struct{ Key, Value string }

func L(k, v string) Label { return Label{Key: k, Value: v} }

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"
	MSyncRetries             MetricKey = "order_sync_retries_total"
)

// MetricDef describes one instrument so adapters can register it up front.
type MetricDef struct {
	Key       MetricKey
	Help      string
	Labels    []string
	Histogram bool
}

// Definitions lists every instrument the service records.
var Definitions = []MetricDef{
	{Key: MUsecaseRequests, Help: "Total number of use case invocations.", Labels: []string{"use_case", "outcome"}},
	{Key: MUsecaseDuration, Help: "Duration of use case execution in seconds.", Labels: []string{"use_case"}, Histogram: true},
	{Key: MHTTPRequests, Help: "Total number of HTTP requests served.", Labels: []string{"method", "route", "status"}},
	{Key: MHTTPRequestDuration, Help: "Duration of HTTP requests in seconds.", Labels: []string{"method", "route", "status"}, Histogram: true},
	{Key: MExternalRequests, Help: "Total number of calls to collaborator services.", Labels: []string{"peer", "endpoint", "outcome"}},
	{Key: MExternalRequestDuration, Help: "Duration of calls to collaborator services in seconds.", Labels: []string{"peer", "endpoint"}, Histogram: true},
	{Key: MSyncRetries, Help: "Retried post-persistence side effects by kind and outcome.", Labels: []string{"kind", "outcome"}},
}
