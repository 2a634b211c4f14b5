package application

import (
	"context"
	"errors"
	"time"

	"github.com/geoforge/basemap/internal/domain"
	"github.com/geoforge/basemap/internal/ports/input"
	"github.com/geoforge/basemap/internal/ports/output"
)

// HealthService implements input.HealthChecker over the service's
// collaborators.
type HealthService struct {
	catalog output.ServerCatalog
	store   output.JobStore
	jobs    *JobManager
}

// NewHealthService creates a health checker. The store and job manager
// may be nil in one-shot CLI mode.
func NewHealthService(catalog output.ServerCatalog, store output.JobStore, jobs *JobManager) *HealthService {
	return &HealthService{catalog: catalog, store: store, jobs: jobs}
}

// IsHealthy implements input.HealthChecker. The service is healthy when
// the catalog has servers and the job store answers queries.
func (h *HealthService) IsHealthy(ctx context.Context) bool {
	if len(h.catalog.List()) == 0 {
		return false
	}
	return h.storeStatus(ctx) != "down"
}

// Details implements input.HealthChecker.
func (h *HealthService) Details(ctx context.Context) input.HealthDetails {
	d := input.HealthDetails{
		ServerCount: len(h.catalog.List()),
		JobStore:    h.storeStatus(ctx),
		CheckedAt:   time.Now().UTC(),
	}
	if h.jobs != nil {
		d.ActiveJobs = h.jobs.ActiveJobs()
	}
	d.Status = "healthy"
	if d.ServerCount == 0 || d.JobStore == "down" {
		d.Status = "unhealthy"
	}
	return d
}

func (h *HealthService) storeStatus(ctx context.Context) string {
	if h.store == nil {
		return "disabled"
	}
	// A miss is fine; only transport or storage failures count.
	_, err := h.store.Get(ctx, "health-probe")
	if err != nil && !errors.Is(err, domain.ErrJobNotFound) {
		return "down"
	}
	return "up"
}
