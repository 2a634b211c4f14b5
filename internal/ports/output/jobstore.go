package output

import (
	"context"

	"github.com/geoforge/basemap/internal/domain"
)

// JobStore persists job records across restarts.
type JobStore interface {
	// Save inserts or replaces the job record.
	Save(ctx context.Context, job *domain.Job) error

	// Get returns the job by id, or domain.ErrJobNotFound.
	Get(ctx context.Context, id string) (*domain.Job, error)

	// List returns jobs newest first, at most limit entries. A limit of
	// zero returns everything.
	List(ctx context.Context, limit int) ([]*domain.Job, error)

	// Close releases the underlying storage.
	Close() error
}
