package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
)

// Notification is a message for the people involved in an application.
type Notification struct {
	ApplicationID string
	Audience      string
	Subject       string
	Body          string
}

// Sender delivers notifications. Delivery channels live outside this service.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender writes notifications to the log.
type LogSender struct {
	Logger *slog.Logger
}

// Send logs n.
func (s LogSender) Send(ctx context.Context, n Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "notification",
		slog.String("application.id", n.ApplicationID),
		slog.String("audience", n.Audience),
		slog.String("subject", n.Subject),
	)
	return nil
}

// Notifier turns domain events into notifications.
type Notifier struct {
	subscriber message.Subscriber
	sender     Sender
	logger     *slog.Logger
}

// NewNotifier wires a notifier reading Topic.
func NewNotifier(subscriber message.Subscriber, sender Sender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{subscriber: subscriber, sender: sender, logger: logger}
}

// Start subscribes synchronously and consumes in the background until ctx is done.
func (n *Notifier) Start(ctx context.Context) error {
	messages, err := n.subscriber.Subscribe(ctx, Topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", Topic, err)
	}
	go func() {
		for msg := range messages {
			n.handle(msg)
		}
	}()
	return nil
}

func (n *Notifier) handle(msg *message.Message) {
	ctx := msg.Context()
	var envelope Envelope
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		n.logger.LogAttrs(ctx, slog.LevelWarn, "dropping malformed event", slog.String("message.id", msg.UUID), slog.String("error", err.Error()))
		msg.Ack()
		return
	}
	notification, ok := render(envelope)
	if !ok {
		msg.Ack()
		return
	}
	if err := n.sender.Send(ctx, notification); err != nil {
		n.logger.LogAttrs(ctx, slog.LevelWarn, "notification failed",
			slog.String("application.id", envelope.ApplicationID),
			slog.String("event", envelope.Name),
			slog.String("error", err.Error()),
		)
		msg.Nack()
		return
	}
	msg.Ack()
}

func render(envelope Envelope) (Notification, bool) {
	n := Notification{ApplicationID: envelope.ApplicationID, Audience: "owner"}
	switch envelope.Name {
	case domain.ApplicationSubmitted{}.EventName():
		var e domain.ApplicationSubmitted
		if json.Unmarshal(envelope.Payload, &e) != nil {
			return n, false
		}
		n.Audience = "staff"
		n.Subject = fmt.Sprintf("New application %s with %d pet(s)", e.Number, e.Pets)
	case domain.PricingDetermined{}.EventName():
		var e domain.PricingDetermined
		if json.Unmarshal(envelope.Payload, &e) != nil {
			return n, false
		}
		n.Subject = fmt.Sprintf("Your quote is ready: total %d, advance %d", e.TotalAmount, e.AdvanceAmount)
	case domain.PaymentRecorded{}.EventName():
		var e domain.PaymentRecorded
		if json.Unmarshal(envelope.Payload, &e) != nil {
			return n, false
		}
		n.Subject = fmt.Sprintf("Payment received (%s): invoice %s", e.Kind, e.InvoiceNumber)
	case domain.FinalBillGenerated{}.EventName():
		var e domain.FinalBillGenerated
		if json.Unmarshal(envelope.Payload, &e) != nil {
			return n, false
		}
		n.Subject = fmt.Sprintf("Final bill ready: %d due", e.FinalAmountDue)
	case domain.HandoverCompleted{}.EventName():
		var e domain.HandoverCompleted
		if json.Unmarshal(envelope.Payload, &e) != nil {
			return n, false
		}
		n.Subject = fmt.Sprintf("Handover completed (%s)", e.Purpose)
	case domain.ApplicationCancelled{}.EventName():
		n.Audience = "staff"
		n.Subject = "Application cancelled by owner"
	case domain.CancellationOverridden{}.EventName():
		n.Subject = "Your booking was cancelled by the facility"
	default:
		return n, false
	}
	n.Body = n.Subject
	return n, true
}
