// Package kafka forwards domain events from the in-process bus to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	HeaderEventType = "event_type"
	peerKafka       = "kafka"
)

// Producer is the part of *kafka.Writer the forwarder uses.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter builds a writer that waits for all in-sync replicas.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
}

// Forwarder writes each subscribed event as a JSON message keyed by its
// aggregate id, so events of one order stay on one partition.
type Forwarder struct {
	producer Producer
	log      observability.Logger
	requests observability.Counter   // external_requests_total{peer,endpoint,outcome}
	duration observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewForwarder(producer Producer, tel observability.Observability) *Forwarder {
	tel = observability.OrNop(tel)
	return &Forwarder{
		producer: producer,
		log:      tel.Logger().With(observability.F("component", "kafka_forwarder")),
		requests: tel.Metrics().Counter(observability.MExternalRequests),
		duration: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

// Start subscribes the forwarder to every named event.
func (f *Forwarder) Start(sub domoutbox.Subscriber, eventNames ...string) {
	for _, name := range eventNames {
		sub.Subscribe(name, f.Forward)
	}
}

func (f *Forwarder) Forward(ctx context.Context, e domoutbox.Event) error {
	name := e.EventName()
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka: encode %s: %w", name, err)
	}
	msg := kafka.Message{
		Value:   value,
		Headers: injectHeaders(ctx, []kafka.Header{{Key: HeaderEventType, Value: []byte(name)}}),
	}
	if key := domoutbox.KeyOf(e); key != "" {
		msg.Key = []byte(key)
	}

	start := time.Now()
	err = f.producer.WriteMessages(ctx, msg)
	f.duration.Observe(time.Since(start).Seconds(),
		observability.L("peer", peerKafka),
		observability.L("endpoint", name),
	)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	f.requests.Add(1,
		observability.L("peer", peerKafka),
		observability.L("endpoint", name),
		observability.L("outcome", outcome),
	)

	logger := logctx.FromOr(ctx, f.log)
	if err != nil {
		logger.Warn("event_forward_failed", observability.F("event", name), observability.Err(err))
		return fmt.Errorf("kafka: write %s: %w", name, err)
	}
	logger.Debug("event_forwarded", observability.F("event", name), observability.F("key", string(msg.Key)))
	return nil
}

func (f *Forwarder) Close() error {
	return f.producer.Close()
}

func injectHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}
