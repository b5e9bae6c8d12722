// Package projection pairs stored aggregates with their persistence timestamps.
package projection

import "time"

// Metadata captures persistence timestamps shared by projections.
type Metadata struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Touch returns metadata for a write at now. A zero CreatedAt marks the first write.
func (m Metadata) Touch(now time.Time) Metadata {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	return m
}

// Projection represents an aggregate view plus persistence metadata.
type Projection[T any] struct {
	Entity   T
	Metadata Metadata
}

// New builds a projection of entity.
func New[T any](entity T, meta Metadata) *Projection[T] {
	return &Projection[T]{Entity: entity, Metadata: meta}
}
