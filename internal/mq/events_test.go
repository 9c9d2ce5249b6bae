package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBackend struct {
	channel string
	data    [][]byte
	attrs   []map[string]string
	err     error
	closed  bool
}

func (b *recordingBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	b.channel = channel
	b.data = append(b.data, data)
	b.attrs = append(b.attrs, attrs)
	return "msg-1", nil
}

func (b *recordingBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	for i, data := range b.data {
		if err := handler(ctx, Message{ID: "m", Data: data, Attributes: b.attrs[i]}); err != nil {
			return err
		}
	}
	return nil
}

func (b *recordingBackend) Close() error {
	b.closed = true
	return nil
}

func TestPublisherPublish(t *testing.T) {
	backend := &recordingBackend{}
	pub := NewPublisher(backend, "hackathon-events")

	err := pub.Publish(context.Background(), Event{
		Type:        EventHackathonRegistered,
		HackathonID: "h1",
		ActorID:     "u1",
		Data:        map[string]any{"registrationCount": 3},
	})
	require.NoError(t, err)

	assert.Equal(t, "hackathon-events", backend.channel)
	require.Len(t, backend.data, 1)
	assert.Equal(t, "hackathon.registered", backend.attrs[0][attrEventType])
	assert.Equal(t, "application/json", backend.attrs[0][attrContentType])
	assert.Equal(t, "h1", backend.attrs[0][AttrHackathonID])

	var decoded Event
	require.NoError(t, json.Unmarshal(backend.data[0], &decoded))
	assert.NotEmpty(t, decoded.ID)
	assert.False(t, decoded.OccurredAt.IsZero())
	assert.Equal(t, "h1", decoded.HackathonID)
}

func TestPublisherRequiresType(t *testing.T) {
	pub := NewPublisher(&recordingBackend{}, "events")
	assert.Error(t, pub.Publish(context.Background(), Event{HackathonID: "h1"}))
}

func TestPublisherWrapsBackendError(t *testing.T) {
	pub := NewPublisher(&recordingBackend{err: errors.New("broker down")}, "events")

	err := pub.Publish(context.Background(), Event{Type: EventHackathonCreated})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hackathon.created")
}

func TestNilPublisherIsNoop(t *testing.T) {
	var pub *Publisher
	assert.NoError(t, pub.Publish(context.Background(), Event{Type: EventHackathonDeleted}))
	assert.NoError(t, pub.Close())

	disabled := NewPublisher(nil, "events")
	assert.NoError(t, disabled.Publish(context.Background(), Event{Type: EventHackathonDeleted}))
	assert.Error(t, disabled.Subscribe(context.Background(), nil))
}

func TestPublisherSubscribeSkipsGarbage(t *testing.T) {
	backend := &recordingBackend{}
	pub := NewPublisher(backend, "events")
	require.NoError(t, pub.Publish(context.Background(), Event{Type: EventHackathonUpdated, HackathonID: "h2"}))
	backend.data = append(backend.data, []byte("not json"))
	backend.attrs = append(backend.attrs, nil)

	var seen []Event
	err := pub.Subscribe(context.Background(), func(_ context.Context, event Event) error {
		seen = append(seen, event)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, EventHackathonUpdated, seen[0].Type)

	require.NoError(t, pub.Close())
	assert.True(t, backend.closed)
}

func TestDeliveryMessage(t *testing.T) {
	msg := deliveryMessage(amqp.Delivery{
		MessageId:   "m1",
		ContentType: "application/json",
		Headers:     amqp.Table{"a": "x", "b": []byte("y"), "c": int32(3)},
		Body:        []byte(`{}`),
	})
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, map[string]string{"a": "x", "b": "y", "c": "3", attrContentType: "application/json"}, msg.Attributes)

	bare := deliveryMessage(amqp.Delivery{})
	assert.Empty(t, bare.Attributes)
}
