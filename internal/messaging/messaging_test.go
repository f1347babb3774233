package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"

	"github.com/Funclose/Ef-HomeWork/internal/config"
)

func TestNewClientDisabledIsNoop(t *testing.T) {
	cfg := config.Config{Messaging: config.Messaging{Driver: "kafka", Kafka: config.Kafka{Topic: "orders.events"}}}
	client, err := NewClient(fxtest.NewLifecycle(t), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "orders.events", client.Topic())
	assert.NoError(t, client.Publish(context.Background(), []byte("k"), []byte("v"), nil))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, client.Consume(ctx, func(context.Context, Message) error { return nil }), context.DeadlineExceeded)
}

func TestNewClientRejectsUnknownDriver(t *testing.T) {
	cfg := config.Config{Messaging: config.Messaging{Enabled: true, Driver: "nats"}}
	_, err := NewClient(fxtest.NewLifecycle(t), cfg, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "nats")
}

func TestFromKafkaCopiesHeaders(t *testing.T) {
	raw := kafka.Message{
		Topic:   "orders.events",
		Key:     []byte("order-1"),
		Value:   []byte(`{"id":1}`),
		Offset:  42,
		Headers: []kafka.Header{{Key: HeaderEventType, Value: []byte("order.created")}},
	}

	msg := fromKafka(raw)
	raw.Key[0] = 'X'

	assert.Equal(t, "order-1", string(msg.Key))
	assert.Equal(t, int64(42), msg.Offset)
	assert.Equal(t, "order.created", msg.Headers[HeaderEventType])

	assert.Nil(t, fromKafka(kafka.Message{}).Headers)
}

func TestSleepStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleep(context.Background(), time.Millisecond))
}
