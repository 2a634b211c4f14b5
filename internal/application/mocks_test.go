package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/paulmach/orb/maptile"

	"github.com/geoforge/basemap/internal/domain"
	"github.com/geoforge/basemap/internal/ports/output"
	"github.com/geoforge/basemap/internal/proj"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockFetcher succeeds for every tile not listed in fail.
type mockFetcher struct {
	mu    sync.Mutex
	fail  map[maptile.Tile]bool
	calls []domain.TileRequest
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{fail: make(map[maptile.Tile]bool)}
}

func (m *mockFetcher) failTile(t maptile.Tile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[t] = true
}

func (m *mockFetcher) Fetch(ctx context.Context, req domain.TileRequest, destDir string) (domain.FetchedTile, error) {
	if err := ctx.Err(); err != nil {
		return domain.FetchedTile{}, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, req)
	failed := m.fail[req.Tile]
	m.mu.Unlock()

	if failed {
		return domain.FetchedTile{}, &domain.FetchError{
			Tile: req.Tile, URL: req.URL(), Attempts: 3,
			Err: fmt.Errorf("unexpected status 404"),
		}
	}

	georef, err := proj.TileGeoreference(req.Tile, req.SRID)
	if err != nil {
		return domain.FetchedTile{}, err
	}
	return domain.FetchedTile{
		Tile:   req.Tile,
		Data:   []byte{0x89, 0x50, 0x4E, 0x47},
		Format: domain.FormatPNG,
		Georef: georef,
		SRID:   req.SRID,
	}, nil
}

func (m *mockFetcher) requests() []domain.TileRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TileRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// mockBuilder records its input and fabricates a result.
type mockBuilder struct {
	mu    sync.Mutex
	tiles []domain.FetchedTile
	opts  output.BuildOptions
	err   error
}

func (m *mockBuilder) Build(ctx context.Context, tiles []domain.FetchedTile, outPath string, opts output.BuildOptions) (domain.MosaicResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiles = tiles
	m.opts = opts
	if m.err != nil {
		return domain.MosaicResult{}, m.err
	}
	return domain.MosaicResult{
		Path:      outPath,
		Format:    opts.Format,
		TileCount: len(tiles),
		Zoom:      int(tiles[0].Tile.Z),
		SRID:      opts.SRID,
		Resampled: true,
	}, nil
}

// mockImporter records raster and WMS imports.
type mockImporter struct {
	mu        sync.Mutex
	rasters   []domain.Provenance
	wms       []output.WMSRequest
	rasterErr error
}

func (m *mockImporter) ImportRaster(ctx context.Context, result domain.MosaicResult, prov domain.Provenance, outputName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rasterErr != nil {
		return "", m.rasterErr
	}
	m.rasters = append(m.rasters, prov)
	return "raster:" + outputName, nil
}

func (m *mockImporter) ImportWMS(ctx context.Context, req output.WMSRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wms = append(m.wms, req)
	return "wms:" + req.Output, nil
}

// mockCatalog serves a fixed descriptor set.
type mockCatalog struct {
	servers map[string]domain.ServerDescriptor
}

func newMockCatalog(servers ...domain.ServerDescriptor) *mockCatalog {
	c := &mockCatalog{servers: make(map[string]domain.ServerDescriptor)}
	for _, s := range servers {
		c.servers[s.ID] = s
	}
	return c
}

func (c *mockCatalog) Get(id string) (domain.ServerDescriptor, error) {
	s, ok := c.servers[id]
	if !ok {
		return domain.ServerDescriptor{}, domain.ErrUnsupportedServer
	}
	return s, nil
}

func (c *mockCatalog) List() []domain.ServerDescriptor {
	out := make([]domain.ServerDescriptor, 0, len(c.servers))
	for _, s := range c.servers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// mockStore keeps jobs in memory.
type mockStore struct {
	mu   sync.Mutex
	jobs map[string]domain.Job
}

func newMockStore() *mockStore {
	return &mockStore{jobs: make(map[string]domain.Job)}
}

func (s *mockStore) Save(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *mockStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return &job, nil
}

func (s *mockStore) List(ctx context.Context, limit int) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Job, 0, len(s.jobs))
	for id := range s.jobs {
		job := s.jobs[id]
		out = append(out, &job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *mockStore) Close() error { return nil }
