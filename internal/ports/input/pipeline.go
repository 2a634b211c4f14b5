package input

import (
	"context"
	"time"

	"github.com/geoforge/basemap/internal/domain"
)

// BasemapService is the primary port: fetch tiles for an extent and
// deliver one georeferenced basemap raster.
type BasemapService interface {
	// Fetch runs the full pipeline synchronously for one request and
	// returns the imported raster reference and the build result.
	Fetch(ctx context.Context, spec domain.FetchSpec) (*domain.Job, error)
}

// JobService manages asynchronous basemap jobs over the API surface.
type JobService interface {
	// Submit validates the spec, queues a job, and returns it in
	// pending state.
	Submit(ctx context.Context, spec domain.FetchSpec) (*domain.Job, error)

	// Get returns the job by id, or domain.ErrJobNotFound.
	Get(ctx context.Context, id string) (*domain.Job, error)

	// List returns recent jobs, newest first.
	List(ctx context.Context, limit int) ([]*domain.Job, error)
}

// HealthDetails carries the readiness snapshot served by the health
// endpoints.
type HealthDetails struct {
	Status      string    `json:"status"`
	ServerCount int       `json:"serverCount"`
	ActiveJobs  int       `json:"activeJobs"`
	JobStore    string    `json:"jobStore"`
	CheckedAt   time.Time `json:"checkedAt"`
}

// HealthChecker reports service health.
type HealthChecker interface {
	// IsHealthy returns true when the service can accept jobs.
	IsHealthy(ctx context.Context) bool

	// Details returns the full readiness snapshot.
	Details(ctx context.Context) HealthDetails
}
