// Package httptransport holds the REST clients for the collaborator services:
// the User Directory, the Product Directory and the Payment Ledger.
package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

// DefaultTimeout bounds every remote call unless configured otherwise.
const DefaultTimeout = 10 * time.Second

const maxErrorBody = 4 << 10

// StatusError is returned for any response outside 2xx.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Code)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Client is the shared core of the collaborator clients: base URL, bounded calls,
// trace propagation, external-call metrics and JSON bodies.
type Client struct {
	peer    string
	baseURL string
	timeout time.Duration
	http    *http.Client
	tracer  observability.Tracer
	prop    propagation.TextMapPropagator
	log     observability.Logger

	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

type Option func(*Client)

// WithHTTPClient replaces the underlying client. Its own Timeout is left as is.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

func NewClient(peer, baseURL string, tel observability.Observability, opts ...Option) *Client {
	tel = observability.OrNop(tel)
	c := &Client{
		peer:         peer,
		baseURL:      strings.TrimRight(baseURL, "/"),
		timeout:      DefaultTimeout,
		tracer:       tel.Tracer(),
		prop:         otel.GetTextMapPropagator(),
		log:          tel.Logger().With(observability.F("component", "http_client"), observability.F("peer", peer)),
		extCounter:   tel.Metrics().Counter(observability.MExternalRequests),
		extHistogram: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c
}

// Do sends one request and decodes a 2xx JSON body into out (when out is non-nil).
// endpoint is the low-cardinality route template used for metrics and spans.
func (c *Client) Do(ctx context.Context, method, endpoint, path string, in, out any) (err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := c.baseURL + path
	ctx, span := c.tracer.Start(ctx, "HTTP "+method+" "+endpoint,
		attribute.String("peer.service", c.peer),
		attribute.String("http.request.method", method),
		attribute.String("url.full", url),
	)

	start := time.Now()
	outcome := "success"
	defer func() {
		if err != nil {
			outcome = classify(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		c.extCounter.Add(1,
			observability.L("peer", c.peer),
			observability.L("endpoint", endpoint),
			observability.L("outcome", outcome),
		)
		c.extHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", c.peer),
			observability.L("endpoint", endpoint),
		)
	}()

	var body io.Reader
	if in != nil {
		raw, merr := json.Marshal(in)
		if merr != nil {
			return fmt.Errorf("%s: encode request: %w", c.peer, merr)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.peer, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.prop.Inject(ctx, propagation.HeaderCarrier(req.Header))

	logctx.FromOr(ctx, c.log).Debug("remote_call",
		observability.F("peer", c.peer),
		observability.F("method", method),
		observability.F("url", url),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %s %s: %w", c.peer, method, url, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, URL: url, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode %s response: %w", c.peer, endpoint, err)
	}
	return nil
}

func classify(err error) string {
	var se *StatusError
	switch {
	case errors.As(err, &se) && se.Code == http.StatusNotFound:
		return "not_found"
	case errors.As(err, &se) && se.Code < 500:
		return "rejected"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
