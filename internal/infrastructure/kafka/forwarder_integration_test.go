//go:build integration

package kafka

import (
	"context"
	"testing"
	"time"

	domorder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func TestForwarderRoundTripThroughBroker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("orders-test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	const topic = "orders.events.it"
	writer := NewWriter(brokers, topic)
	f := NewForwarder(writer, nil)
	t.Cleanup(func() { _ = f.Close() })

	require.Eventually(t, func() bool {
		return f.Forward(ctx, domorder.NewSyncPendingEvent("o-42")) == nil
	}, time.Minute, time.Second)

	reader := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, MinBytes: 1, MaxBytes: 1 << 20})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "o-42", string(msg.Key))
	assert.Equal(t, "order.sync_pending", header(msg, HeaderEventType))
}
