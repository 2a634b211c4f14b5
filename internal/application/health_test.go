package application

import (
	"context"
	"testing"
)

func TestHealthHealthy(t *testing.T) {
	f := newPipelineFixture(t, testServer())
	h := NewHealthService(newMockCatalog(testServer()), f.store, nil)

	if !h.IsHealthy(context.Background()) {
		t.Error("service with servers and store reported unhealthy")
	}
	d := h.Details(context.Background())
	if d.Status != "healthy" {
		t.Errorf("status = %q, want healthy", d.Status)
	}
	if d.ServerCount != 1 {
		t.Errorf("server count = %d, want 1", d.ServerCount)
	}
	if d.JobStore != "up" {
		t.Errorf("job store = %q, want up", d.JobStore)
	}
}

func TestHealthEmptyCatalog(t *testing.T) {
	f := newPipelineFixture(t)
	h := NewHealthService(newMockCatalog(), f.store, nil)

	if h.IsHealthy(context.Background()) {
		t.Error("service with empty catalog reported healthy")
	}
	if d := h.Details(context.Background()); d.Status != "unhealthy" {
		t.Errorf("status = %q, want unhealthy", d.Status)
	}
}

func TestHealthNoStore(t *testing.T) {
	h := NewHealthService(newMockCatalog(testServer()), nil, nil)
	if !h.IsHealthy(context.Background()) {
		t.Error("disabled store must not make the service unhealthy")
	}
	if d := h.Details(context.Background()); d.JobStore != "disabled" {
		t.Errorf("job store = %q, want disabled", d.JobStore)
	}
}
