package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	AppointmentCreated EventType = "appointmentCreated"
	AppointmentUpdated EventType = "appointmentUpdated"
	AppointmentDeleted EventType = "appointmentDeleted"
)

// Event is the message delivered to real-time viewers.
type Event struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// New encodes payload into an event of the given type.
func New(eventType EventType, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, Data: data, Timestamp: time.Now().UTC()}, nil
}

// Publisher delivers events to whatever transport sits behind it.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e Event) error

func (f PublisherFunc) Publish(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, Event) error { return nil })
