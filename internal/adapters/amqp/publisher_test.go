package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyporter/luggage-api/internal/ports/out/events"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	got    []published
	err    error
	closed bool
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.got = append(c.got, published{exchange, key, msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestPublisher_Publish(t *testing.T) {
	t.Parallel()

	ch := &fakeChannel{}
	p := &Publisher{ch: ch, exchange: "luggage.events"}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), events.Event{
		Type:       events.ContractUpdated,
		Topic:      "contract:k1",
		Payload:    map[string]string{"status": "assigned"},
		OccurredAt: at,
	})
	require.NoError(t, err)
	require.Len(t, ch.got, 1)

	got := ch.got[0]
	assert.Equal(t, "luggage.events", got.exchange)
	assert.Equal(t, "contract.updated", got.key)
	assert.Equal(t, "application/json", got.msg.ContentType)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.Equal(t, "contract:k1", got.msg.Headers["topic"])
	assert.True(t, at.Equal(got.msg.Timestamp))

	var body map[string]any
	require.NoError(t, json.Unmarshal(got.msg.Body, &body))
	assert.Equal(t, "contract.updated", body["type"])
	assert.Equal(t, map[string]any{"status": "assigned"}, body["payload"])

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestPublisher_PublishError(t *testing.T) {
	t.Parallel()

	boom := errors.New("channel closed")
	p := &Publisher{ch: &fakeChannel{err: boom}, exchange: "x"}
	err := p.Publish(context.Background(), events.Event{Type: events.MessageCreated})
	assert.ErrorIs(t, err, boom)

	_, err = Message(events.Event{Type: events.MessageCreated, Payload: make(chan int)})
	assert.Error(t, err)
}
