package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/geoforge/basemap/internal/domain"
	"github.com/geoforge/basemap/internal/ports/output"
)

// JobManager runs pipeline jobs asynchronously. Submitted jobs are
// persisted immediately and executed by a bounded set of runner
// goroutines; results land back in the store.
type JobManager struct {
	pipeline *Pipeline
	store    output.JobStore
	metrics  output.MetricsCollector
	logger   *slog.Logger

	maxConcurrent int

	mu      sync.Mutex
	active  int
	pending map[string]*domain.Job // jobs not yet persisted as terminal

	queue  chan *domain.Job
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewJobManager creates a job manager. maxConcurrent bounds how many
// pipelines run at once; queueDepth bounds accepted-but-unstarted jobs.
func NewJobManager(pipeline *Pipeline, store output.JobStore, metrics output.MetricsCollector, logger *slog.Logger, maxConcurrent, queueDepth int) *JobManager {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	if queueDepth <= 0 {
		queueDepth = 32
	}
	if metrics == nil {
		metrics = output.NewNoOpMetrics()
	}
	return &JobManager{
		pipeline:      pipeline,
		store:         store,
		metrics:       metrics,
		logger:        logger.With("component", "job_manager"),
		maxConcurrent: maxConcurrent,
		pending:       make(map[string]*domain.Job),
		queue:         make(chan *domain.Job, queueDepth),
		stopCh:        make(chan struct{}),
	}
}

// Start launches the runner goroutines.
func (m *JobManager) Start() {
	for i := 0; i < m.maxConcurrent; i++ {
		m.wg.Add(1)
		go m.runner()
	}
	m.logger.Info("job manager started", "runners", m.maxConcurrent)
}

// Stop drains the runners. Queued jobs that never started stay pending
// in the store and are reported failed on restart by Recover.
func (m *JobManager) Stop() {
	close(m.stopCh)
	m.wg.Wait()
	m.logger.Info("job manager stopped")
}

// Recover marks jobs left pending or running by a previous process as
// failed. Called once at startup, before Start.
func (m *JobManager) Recover(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	jobs, err := m.store.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("listing jobs for recovery: %w", err)
	}
	for _, job := range jobs {
		if job.IsTerminal() {
			continue
		}
		now := time.Now().UTC()
		job.Status = domain.JobFailed
		job.Error = "interrupted by service restart"
		job.CompletedAt = &now
		if err := m.store.Save(ctx, job); err != nil {
			return fmt.Errorf("marking job %s interrupted: %w", job.ID, err)
		}
		m.logger.Warn("marked interrupted job failed", "job", job.ID)
	}
	return nil
}

// Submit implements input.JobService.
func (m *JobManager) Submit(ctx context.Context, spec domain.FetchSpec) (*domain.Job, error) {
	job := &domain.Job{
		ID:        uuid.NewString(),
		Spec:      spec,
		Status:    domain.JobPending,
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.pending[job.ID] = job
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Save(ctx, job); err != nil {
			m.forget(job.ID)
			return nil, fmt.Errorf("persisting job: %w", err)
		}
	}

	select {
	case m.queue <- job:
	default:
		m.forget(job.ID)
		now := time.Now().UTC()
		job.Status = domain.JobFailed
		job.Error = "job queue is full"
		job.CompletedAt = &now
		if m.store != nil {
			m.store.Save(ctx, job)
		}
		return nil, fmt.Errorf("job queue is full: %w", domain.ErrUnavailable)
	}

	m.logger.Info("job queued", "job", job.ID, "output", spec.Output)
	return job, nil
}

// Get implements input.JobService. The store's snapshot is
// authoritative; the in-memory record is only consulted when no store
// is configured because runners mutate it concurrently.
func (m *JobManager) Get(ctx context.Context, id string) (*domain.Job, error) {
	if m.store != nil {
		return m.store.Get(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.pending[id]; ok {
		snapshot := *job
		return &snapshot, nil
	}
	return nil, domain.ErrJobNotFound
}

// List implements input.JobService.
func (m *JobManager) List(ctx context.Context, limit int) ([]*domain.Job, error) {
	if m.store == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		jobs := make([]*domain.Job, 0, len(m.pending))
		for _, job := range m.pending {
			jobs = append(jobs, job)
		}
		return jobs, nil
	}
	return m.store.List(ctx, limit)
}

// ActiveJobs returns the number of currently running pipelines.
func (m *JobManager) ActiveJobs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *JobManager) runner() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			return
		case job := <-m.queue:
			m.execute(job)
		}
	}
}

func (m *JobManager) execute(job *domain.Job) {
	m.mu.Lock()
	m.active++
	m.metrics.SetActiveJobs(m.active)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active--
		m.metrics.SetActiveJobs(m.active)
		m.mu.Unlock()
		m.forget(job.ID)
	}()

	// Jobs own their lifetime; the submit request is long gone.
	if err := m.pipeline.Run(context.Background(), job); err != nil {
		m.logger.Error("job failed", "job", job.ID, "error", err)
		return
	}
	m.logger.Info("job completed", "job", job.ID, "output", job.Spec.Output)
}

func (m *JobManager) forget(id string) {
	m.mu.Lock()
	delete(m.pending, id)
	m.mu.Unlock()
}
