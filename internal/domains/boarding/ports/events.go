package ports

import (
	"context"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
)

// EventPublisher forwards domain events after a successful write.
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.Event) error
}
