package application

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/geoforge/basemap/internal/domain"
	"github.com/geoforge/basemap/internal/tilegrid"
)

func testServer() domain.ServerDescriptor {
	return domain.ServerDescriptor{
		ID:          "osm",
		DisplayName: "OpenStreetMap",
		URLTemplate: "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		Scheme:      domain.SchemeXYZ,
		MaxZoom:     19,
		Format:      domain.FormatPNG,
	}
}

func wmsServer() domain.ServerDescriptor {
	return domain.ServerDescriptor{
		ID:          "usgs_wms",
		DisplayName: "USGS Imagery",
		URLTemplate: "https://basemap.nationalmap.gov/wms",
		Scheme:      domain.SchemeWMS,
		MaxZoom:     0,
		Format:      domain.FormatJPEG,
	}
}

type pipelineFixture struct {
	pipeline *Pipeline
	fetcher  *mockFetcher
	builder  *mockBuilder
	importer *mockImporter
	store    *mockStore
}

func newPipelineFixture(t *testing.T, servers ...domain.ServerDescriptor) *pipelineFixture {
	t.Helper()
	planner, err := tilegrid.NewPlanner(tilegrid.Config{})
	if err != nil {
		t.Fatalf("NewPlanner: %v", err)
	}

	f := &pipelineFixture{
		fetcher:  newMockFetcher(),
		builder:  &mockBuilder{},
		importer: &mockImporter{},
		store:    newMockStore(),
	}
	f.pipeline = NewPipeline(
		newMockCatalog(servers...),
		planner,
		NewOrchestrator(f.fetcher, 4, testLogger()),
		f.builder,
		f.importer,
		nil,
		f.store,
		nil,
		testLogger(),
		PipelineOptions{WorkDir: t.TempDir()},
	)
	return f
}

func baseSpec() domain.FetchSpec {
	return domain.FetchSpec{
		Output:     "berlin",
		ServerID:   "osm",
		BBox:       domain.NewBoundingBox(13.3, 52.4, 13.5, 52.6, domain.SRIDWGS84),
		Resolution: 30,
		Format:     domain.FormatPNG,
	}
}

func TestFetchEndToEnd(t *testing.T) {
	f := newPipelineFixture(t, testServer())

	job, err := f.pipeline.Fetch(context.Background(), baseSpec())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if job.Status != domain.JobCompleted {
		t.Errorf("status = %s, want completed", job.Status)
	}
	if job.Result == nil {
		t.Fatal("job has no result")
	}
	if job.Result.Zoom != 13 {
		t.Errorf("zoom = %d, want 13 for 30 m/px", job.Result.Zoom)
	}
	if job.TotalTiles == 0 || job.FetchedTiles != job.TotalTiles {
		t.Errorf("tile counts: fetched %d of %d", job.FetchedTiles, job.TotalTiles)
	}
	if job.ImportRef != "raster:berlin" {
		t.Errorf("import ref = %q, want raster:berlin", job.ImportRef)
	}

	stored, err := f.store.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("stored job: %v", err)
	}
	if stored.Status != domain.JobCompleted {
		t.Errorf("stored status = %s, want completed", stored.Status)
	}

	// Requested URLs must carry real tile paths, no placeholders left.
	for _, req := range f.fetcher.requests() {
		if strings.ContainsAny(req.URL(), "{}") {
			t.Fatalf("unresolved placeholder in %q", req.URL())
		}
	}

	if len(f.importer.rasters) != 1 {
		t.Fatalf("imports = %d, want 1", len(f.importer.rasters))
	}
	prov := f.importer.rasters[0]
	if prov.Server != "OpenStreetMap" {
		t.Errorf("provenance server = %q", prov.Server)
	}
	if !strings.Contains(prov.Description, "zoom 13") {
		t.Errorf("provenance description = %q, want zoom mention", prov.Description)
	}
}

func TestFetchPartialFailureStillDelivers(t *testing.T) {
	f := newPipelineFixture(t, testServer())

	// Fail a handful of tiles: the mosaic still ships with holes.
	spec := baseSpec()
	planner, _ := tilegrid.NewPlanner(tilegrid.Config{})
	plan, err := planner.Plan(spec.BBox, spec.Resolution, 19)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	f.fetcher.failTile(plan.Tiles[0])
	f.fetcher.failTile(plan.Tiles[1])

	job, err := f.pipeline.Fetch(context.Background(), spec)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if job.FailedTiles != 2 {
		t.Errorf("failed tiles = %d, want 2", job.FailedTiles)
	}
	if job.FetchedTiles != job.TotalTiles-2 {
		t.Errorf("fetched = %d, want %d", job.FetchedTiles, job.TotalTiles-2)
	}
	if job.Status != domain.JobCompleted {
		t.Errorf("status = %s, want completed", job.Status)
	}
}

func TestFetchTotalFailureAborts(t *testing.T) {
	f := newPipelineFixture(t, testServer())

	spec := baseSpec()
	planner, _ := tilegrid.NewPlanner(tilegrid.Config{})
	plan, _ := planner.Plan(spec.BBox, spec.Resolution, 19)
	for _, tile := range plan.Tiles {
		f.fetcher.failTile(tile)
	}

	job, err := f.pipeline.Fetch(context.Background(), spec)
	if !errors.Is(err, domain.ErrNoTilesFetched) {
		t.Fatalf("err = %v, want ErrNoTilesFetched", err)
	}
	if job.Status != domain.JobFailed {
		t.Errorf("status = %s, want failed", job.Status)
	}
	if len(f.importer.rasters) != 0 {
		t.Error("importer called despite total fetch failure")
	}
}

func TestFetchUnknownServerListsKnownOnes(t *testing.T) {
	f := newPipelineFixture(t, testServer(), wmsServer())

	spec := baseSpec()
	spec.ServerID = "nope"
	_, err := f.pipeline.Fetch(context.Background(), spec)
	if !errors.Is(err, domain.ErrUnsupportedServer) {
		t.Fatalf("err = %v, want ErrUnsupportedServer", err)
	}
	if !strings.Contains(err.Error(), "osm") || !strings.Contains(err.Error(), "usgs_wms") {
		t.Errorf("error does not list known servers: %v", err)
	}
}

func TestFetchCustomURLOverridesCatalog(t *testing.T) {
	f := newPipelineFixture(t) // empty catalog

	spec := baseSpec()
	spec.ServerID = ""
	spec.CustomURL = "https://tiles.example.com/{z}/{x}/{y}.png"

	job, err := f.pipeline.Fetch(context.Background(), spec)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if job.Status != domain.JobCompleted {
		t.Errorf("status = %s, want completed", job.Status)
	}
	for _, req := range f.fetcher.requests() {
		if !strings.HasPrefix(req.URL(), "https://tiles.example.com/") {
			t.Fatalf("request went to %q, want custom server", req.URL())
		}
	}
}

func TestFetchWMSDelegates(t *testing.T) {
	f := newPipelineFixture(t, wmsServer())

	spec := baseSpec()
	spec.ServerID = "usgs_wms"
	spec.WMSLayers = "0"

	job, err := f.pipeline.Fetch(context.Background(), spec)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if job.ImportRef != "wms:berlin" {
		t.Errorf("import ref = %q, want wms:berlin", job.ImportRef)
	}
	if len(f.fetcher.requests()) != 0 {
		t.Error("tile fetcher used for a WMS server")
	}
	if len(f.importer.wms) != 1 {
		t.Fatalf("wms imports = %d, want 1", len(f.importer.wms))
	}
	req := f.importer.wms[0]
	if req.Layers != "0" || req.Resolution != 30 {
		t.Errorf("wms request = %+v", req)
	}
}

func TestFetchValidation(t *testing.T) {
	f := newPipelineFixture(t, testServer())

	tests := []struct {
		name   string
		mutate func(*domain.FetchSpec)
	}{
		{"empty output", func(s *domain.FetchSpec) { s.Output = "" }},
		{"path separator in output", func(s *domain.FetchSpec) { s.Output = "../evil" }},
		{"zero resolution", func(s *domain.FetchSpec) { s.Resolution = 0 }},
		{"no server at all", func(s *domain.FetchSpec) { s.ServerID = ""; s.CustomURL = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := baseSpec()
			tt.mutate(&spec)
			_, err := f.pipeline.Fetch(context.Background(), spec)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestFetchUnsupportedSourceCRS(t *testing.T) {
	f := newPipelineFixture(t, testServer())

	spec := baseSpec()
	spec.BBox = domain.NewBoundingBox(0, 0, 1000, 1000, 2154)
	_, err := f.pipeline.Fetch(context.Background(), spec)
	if !errors.Is(err, domain.ErrUnsupportedCRS) {
		t.Errorf("err = %v, want ErrUnsupportedCRS", err)
	}
}

func TestFetchMercatorSourceBBox(t *testing.T) {
	f := newPipelineFixture(t, testServer())

	// Roughly the same Berlin extent, expressed in web mercator.
	spec := baseSpec()
	spec.BBox = domain.NewBoundingBox(1480000, 6880000, 1503000, 6917000, domain.SRIDWebMercator)

	job, err := f.pipeline.Fetch(context.Background(), spec)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if job.Status != domain.JobCompleted {
		t.Errorf("status = %s, want completed", job.Status)
	}
}

func TestFetchZoomCappedByServer(t *testing.T) {
	server := testServer()
	server.MaxZoom = 11
	f := newPipelineFixture(t, server)

	spec := baseSpec()
	spec.Resolution = 1 // would want zoom 16

	job, err := f.pipeline.Fetch(context.Background(), spec)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if job.Result.Zoom != 11 {
		t.Errorf("zoom = %d, want server cap 11", job.Result.Zoom)
	}
}
