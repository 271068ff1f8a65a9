package ports

import (
	"context"
	"errors"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/shared/projection"
)

var (
	ErrNotFound = errors.New("application not found")
	// ErrVersionConflict means the record moved on since it was read.
	ErrVersionConflict = errors.New("application was modified concurrently")
	ErrDuplicateNumber = errors.New("application number already exists")
)

// Repository persists application aggregates with optimistic concurrency.
type Repository interface {
	Create(ctx context.Context, app *domain.Application) (*projection.Projection[*domain.Application], error)
	GetByID(ctx context.Context, id string) (*projection.Projection[*domain.Application], error)
	// Update writes app only when the stored version equals expectedVersion.
	Update(ctx context.Context, app *domain.Application, expectedVersion int64) (*projection.Projection[*domain.Application], error)
	// ListByOwner returns the owner's applications; empty statuses means all.
	ListByOwner(ctx context.Context, ownerID string, statuses []domain.Status) ([]*projection.Projection[*domain.Application], error)
	List(ctx context.Context, statuses []domain.Status) ([]*projection.Projection[*domain.Application], error)
}
