package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Notification
}

func (s *recordingSender) Send(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestPublishedEventsReachTheNotifier(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	defer bus.Close()

	sender := &recordingSender{}
	require.NoError(t, NewNotifier(bus, sender, nil).Start(ctx))

	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	base := domain.BaseEvent{ApplicationID: "app-1", Timestamp: now}
	err := NewPublisher(bus, nil).Publish(ctx,
		domain.ApplicationSubmitted{BaseEvent: base, Number: "TCA-1", Pets: 2},
		domain.StatusChanged{BaseEvent: base, From: domain.StatusSubmitted, To: domain.StatusPriceDetermined},
		domain.PricingDetermined{BaseEvent: base, TotalAmount: 1000, AdvanceAmount: 500},
	)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return sender.count() == 2 }, time.Second, 10*time.Millisecond)
	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, "staff", sender.sent[0].Audience)
	assert.Contains(t, sender.sent[0].Subject, "TCA-1")
	assert.Contains(t, sender.sent[1].Subject, "advance 500")
}

func TestRenderSkipsInternalEvents(t *testing.T) {
	_, ok := render(Envelope{Name: domain.StatusChanged{}.EventName(), Payload: []byte(`{}`)})
	assert.False(t, ok)
	_, ok = render(Envelope{Name: domain.HandoverOTPIssued{}.EventName(), Payload: []byte(`{}`)})
	assert.False(t, ok)
}
