package jobstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/geoforge/basemap/internal/domain"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleJob(id string, created time.Time) *domain.Job {
	return &domain.Job{
		ID: id,
		Spec: domain.FetchSpec{
			Output:     "berlin",
			ServerID:   "OpenStreetMap",
			BBox:       domain.NewBoundingBox(13.3, 52.4, 13.5, 52.6, domain.SRIDWGS84),
			Resolution: 30,
			Format:     domain.FormatPNG,
		},
		Status:    domain.JobPending,
		CreatedAt: created,
	}
}

func TestSaveAndGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	job := sampleJob("job-1", time.Now().UTC().Truncate(time.Second))
	if err := s.Save(ctx, job); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.JobPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
	if got.Spec.Output != "berlin" || got.Spec.Resolution != 30 {
		t.Errorf("spec round-trip lost data: %+v", got.Spec)
	}
	if got.StartedAt != nil || got.CompletedAt != nil {
		t.Error("pending job must have no start or completion time")
	}
	if got.Result != nil {
		t.Error("pending job must have no result")
	}
}

func TestSaveOverwritesTerminalState(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	job := sampleJob("job-1", time.Now().UTC().Truncate(time.Second))
	if err := s.Save(ctx, job); err != nil {
		t.Fatalf("Save: %v", err)
	}

	started := time.Now().UTC().Truncate(time.Second)
	completed := started.Add(42 * time.Second)
	job.Status = domain.JobCompleted
	job.TotalTiles = 9
	job.FetchedTiles = 8
	job.FailedTiles = 1
	job.ImportRef = "/data/berlin.png"
	job.StartedAt = &started
	job.CompletedAt = &completed
	job.Result = &domain.MosaicResult{
		Path: "/tmp/berlin.png", Format: domain.FormatPNG,
		Width: 768, Height: 768, TileCount: 8, Zoom: 13,
		Coverage: 8.0 / 9.0, SRID: domain.SRIDWebMercator,
	}
	if err := s.Save(ctx, job); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.JobCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.FetchedTiles != 8 || got.FailedTiles != 1 {
		t.Errorf("counts = %d/%d, want 8/1", got.FetchedTiles, got.FailedTiles)
	}
	if got.Result == nil || got.Result.Zoom != 13 {
		t.Errorf("result round-trip lost data: %+v", got.Result)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(started) {
		t.Errorf("started at = %v, want %v", got.StartedAt, started)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(completed) {
		t.Errorf("completed at = %v, want %v", got.CompletedAt, completed)
	}
}

func TestGetMissing(t *testing.T) {
	s := newStore(t)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"old", "middle", "new"} {
		if err := s.Save(ctx, sampleJob(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	jobs, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(jobs))
	}
	if jobs[0].ID != "new" || jobs[1].ID != "middle" {
		t.Errorf("order = %s, %s; want new, middle", jobs[0].ID, jobs[1].ID)
	}

	all, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all jobs = %d, want 3", len(all))
	}
}
