package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jwalitptl/scheduler-api/pkg/event"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
)

// EventPublisher publishes events onto one broker channel.
type EventPublisher struct {
	broker  Broker
	channel string
}

func NewEventPublisher(broker Broker, channel string) *EventPublisher {
	return &EventPublisher{broker: broker, channel: channel}
}

func (p *EventPublisher) Publish(ctx context.Context, e event.Event) error {
	if err := p.broker.Publish(ctx, p.channel, e); err != nil {
		return fmt.Errorf("failed to publish %s: %w", e.Type, err)
	}
	return nil
}

const (
	relayMinBackoff = 500 * time.Millisecond
	relayMaxBackoff = 30 * time.Second
)

// Relay forwards every event seen on a broker channel to a local publisher.
// Each API instance runs one so its own viewers receive bookings made on
// any instance.
type Relay struct {
	broker  Broker
	channel string
	target  event.Publisher
	logger  *logger.Logger

	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewRelay(broker Broker, channel string, target event.Publisher, logger *logger.Logger) *Relay {
	return &Relay{
		broker:     broker,
		channel:    channel,
		target:     target,
		logger:     logger,
		minBackoff: relayMinBackoff,
		maxBackoff: relayMaxBackoff,
	}
}

// Start relays events until ctx is done. A failed subscribe is retried with
// exponential backoff and a subscription that ends early is reopened.
func (r *Relay) Start(ctx context.Context) {
	delay := r.minBackoff
	for {
		msgs, err := r.broker.Subscribe(ctx, r.channel)
		if err != nil {
			r.logger.Error(err, "Failed to subscribe to broker channel", "channel", r.channel, "retry_in", delay.String())
		} else {
			delay = r.minBackoff
			r.logger.Info("Relaying broker events", "channel", r.channel)
			r.forward(ctx, msgs)
			if ctx.Err() != nil {
				return
			}
			r.logger.Warn("Broker subscription ended, resubscribing", "channel", r.channel)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if err != nil {
			delay = min(delay*2, r.maxBackoff)
		}
	}
}

func (r *Relay) forward(ctx context.Context, msgs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-msgs:
			if !ok {
				return
			}
			var e event.Event
			if err := json.Unmarshal(payload, &e); err != nil {
				r.logger.Error(err, "Discarding malformed event", "channel", r.channel)
				continue
			}
			if err := r.target.Publish(ctx, e); err != nil {
				// Log error but continue processing
				r.logger.Error(err, "Failed to relay event", "event_type", string(e.Type))
			}
		}
	}
}
