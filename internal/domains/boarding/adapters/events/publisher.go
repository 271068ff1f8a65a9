package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
)

// Topic carries every boarding domain event.
const Topic = "boarding.events"

const eventNameKey = "event_name"

var _ ports.EventPublisher = (*Publisher)(nil)

// Envelope is the wire form of a domain event.
type Envelope struct {
	Name          string          `json:"name"`
	ApplicationID string          `json:"applicationId"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Payload       json.RawMessage `json:"payload"`
}

// Publisher forwards domain events to a watermill publisher.
type Publisher struct {
	publisher message.Publisher
	topic     string
	logger    *slog.Logger
}

// NewPublisher wires the publisher on Topic.
func NewPublisher(publisher message.Publisher, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{publisher: publisher, topic: Topic, logger: logger}
}

// Publish sends each event as its own message. Failures are logged and joined.
func (p *Publisher) Publish(ctx context.Context, events ...domain.Event) error {
	if p == nil || p.publisher == nil {
		return nil
	}
	var errs error
	for _, event := range events {
		msg, err := newMessage(event)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		msg.SetContext(ctx)
		if err := p.publisher.Publish(p.topic, msg); err != nil {
			p.logger.LogAttrs(ctx, slog.LevelWarn, "failed to publish domain event",
				slog.String("event", event.EventName()),
				slog.String("application.id", event.AggregateID()),
				slog.String("error", err.Error()),
			)
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

func newMessage(event domain.Event) (*message.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event.EventName(), err)
	}
	body, err := json.Marshal(Envelope{
		Name:          event.EventName(),
		ApplicationID: event.AggregateID(),
		OccurredAt:    event.OccurredAt(),
		Payload:       payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.Metadata.Set(eventNameKey, event.EventName())
	return msg, nil
}
