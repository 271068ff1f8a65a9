package projection

import "time"

// Metadata captures persistence timestamps and the optimistic concurrency version.
type Metadata struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	// Version increases by one on every successful write of the entity.
	Version int64
}

// Projection represents an aggregate view plus persistence metadata.
type Projection[T any] struct {
	Entity   T
	Metadata Metadata
}

// New wraps an entity with its metadata.
func New[T any](entity T, meta Metadata) *Projection[T] {
	return &Projection[T]{Entity: entity, Metadata: meta}
}
