// Package outbox defines the event contract between the order workflows and
// whatever moves their events: the in-process bus, the Kafka forwarder and the
// sync and notification workers.
package outbox

import "context"

// Event is a named domain fact. The name is the routing key on every transport.
type Event interface {
	EventName() string
}

// Keyed events belong to one order. Transports partition by the key so events
// of the same order stay in publication order.
type Keyed interface {
	AggregateID() string
}

type Handler func(ctx context.Context, e Event) error

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Subscriber interface {
	Subscribe(eventName string, h Handler)
}

// KeyOf returns the aggregate key of e, or "" for events that carry none.
func KeyOf(e Event) string {
	if k, ok := e.(Keyed); ok {
		return k.AggregateID()
	}
	return ""
}

// Names lists the routing names of the given prototypes.
func Names(prototypes ...Event) []string {
	out := make([]string, 0, len(prototypes))
	for _, p := range prototypes {
		out = append(out, p.EventName())
	}
	return out
}
