package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
	"github.com/Apurer/temporary-care-api/internal/shared/projection"
)

var _ ports.Repository = (*Repository)(nil)

// Repository is an in-memory implementation used for demos/tests.
type Repository struct {
	mu      sync.RWMutex
	apps    map[string]*storedApplication
	numbers map[string]string
	now     func() time.Time
}

type storedApplication struct {
	app      *domain.Application
	metadata projection.Metadata
}

// NewRepository constructs an empty in-memory store.
func NewRepository() *Repository {
	return &Repository{
		apps:    map[string]*storedApplication{},
		numbers: map[string]string{},
		now:     time.Now,
	}
}

// WithClock overrides the time source for deterministic testing.
func (r *Repository) WithClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// Create inserts a new application at version 1.
func (r *Repository) Create(_ context.Context, app *domain.Application) (*projection.Projection[*domain.Application], error) {
	if app == nil {
		return nil, errors.New("cannot save nil application")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.apps[app.ID]; ok {
		return nil, ports.ErrVersionConflict
	}
	if _, ok := r.numbers[app.Number]; ok {
		return nil, ports.ErrDuplicateNumber
	}
	timestamp := r.now()
	stored := &storedApplication{
		app:      app.Clone(),
		metadata: projection.Metadata{CreatedAt: timestamp, UpdatedAt: timestamp, Version: 1},
	}
	r.apps[app.ID] = stored
	r.numbers[app.Number] = app.ID
	return projectionCopy(stored), nil
}

// GetByID fetches an application if present.
func (r *Repository) GetByID(_ context.Context, id string) (*projection.Projection[*domain.Application], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.apps[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return projectionCopy(entry), nil
}

// Update replaces the application when the stored version still equals expectedVersion.
func (r *Repository) Update(_ context.Context, app *domain.Application, expectedVersion int64) (*projection.Projection[*domain.Application], error) {
	if app == nil {
		return nil, errors.New("cannot save nil application")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.apps[app.ID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	if entry.metadata.Version != expectedVersion {
		return nil, ports.ErrVersionConflict
	}
	stored := &storedApplication{
		app: app.Clone(),
		metadata: projection.Metadata{
			CreatedAt: entry.metadata.CreatedAt,
			UpdatedAt: r.now(),
			Version:   expectedVersion + 1,
		},
	}
	r.apps[app.ID] = stored
	return projectionCopy(stored), nil
}

// ListByOwner returns the owner's applications, newest first.
func (r *Repository) ListByOwner(_ context.Context, ownerID string, statuses []domain.Status) ([]*projection.Projection[*domain.Application], error) {
	return r.filter(func(app *domain.Application) bool { return app.OwnerID == ownerID }, statuses), nil
}

// List returns every application, newest first.
func (r *Repository) List(_ context.Context, statuses []domain.Status) ([]*projection.Projection[*domain.Application], error) {
	return r.filter(func(*domain.Application) bool { return true }, statuses), nil
}

func (r *Repository) filter(match func(*domain.Application) bool, statuses []domain.Status) []*projection.Projection[*domain.Application] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := map[domain.Status]struct{}{}
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	var list []*projection.Projection[*domain.Application]
	for _, entry := range r.apps {
		if !match(entry.app) {
			continue
		}
		if _, ok := set[entry.app.Status]; len(set) > 0 && !ok {
			continue
		}
		list = append(list, projectionCopy(entry))
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Entity.SubmittedAt.After(list[j].Entity.SubmittedAt)
	})
	return list
}

func projectionCopy(entry *storedApplication) *projection.Projection[*domain.Application] {
	return projection.New(entry.app.Clone(), entry.metadata)
}
