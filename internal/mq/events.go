package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a hackathon domain event.
type EventType string

const (
	EventHackathonCreated      EventType = "hackathon.created"
	EventHackathonUpdated      EventType = "hackathon.updated"
	EventHackathonDeleted      EventType = "hackathon.deleted"
	EventHackathonRegistered   EventType = "hackathon.registered"
	EventHackathonUnregistered EventType = "hackathon.unregistered"
)

const (
	attrEventType   = "event-type"
	attrContentType = "content-type"
	// AttrHackathonID carries the hackathon id so backends can keep the
	// events of one hackathon in order.
	AttrHackathonID = "hackathon-id"
)

// Event is the JSON document published for every hackathon change.
type Event struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	HackathonID string         `json:"hackathonId"`
	ActorID     string         `json:"actorId,omitempty"`
	OccurredAt  time.Time      `json:"occurredAt"`
	Data        map[string]any `json:"data,omitempty"`
}

// Publisher encodes events and sends them to one channel of a Backend.
type Publisher struct {
	backend Backend
	channel string
}

// NewPublisher constructs a Publisher for channel.
func NewPublisher(backend Backend, channel string) *Publisher {
	return &Publisher{backend: backend, channel: channel}
}

// Publish fills in the event id and timestamp when missing and sends it.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.backend == nil {
		return nil
	}
	if event.Type == "" {
		return errors.New("event type is required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	attrs := map[string]string{
		attrEventType:   string(event.Type),
		attrContentType: "application/json",
	}
	if event.HackathonID != "" {
		attrs[AttrHackathonID] = event.HackathonID
	}
	if _, err := p.backend.Publish(ctx, p.channel, data, attrs); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Subscribe decodes events from the publisher's channel until ctx is done.
// Messages that are not valid events are acknowledged and skipped.
func (p *Publisher) Subscribe(ctx context.Context, handle func(ctx context.Context, event Event) error) error {
	if p == nil || p.backend == nil {
		return errors.New("event backend is not configured")
	}
	return p.backend.Subscribe(ctx, p.channel, func(ctx context.Context, msg Message) error {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return nil
		}
		return handle(ctx, event)
	})
}

// Close closes the underlying backend.
func (p *Publisher) Close() error {
	if p == nil || p.backend == nil {
		return nil
	}
	return p.backend.Close()
}
