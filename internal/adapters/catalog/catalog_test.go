package catalog

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/geoforge/basemap/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestBuiltinCatalog(t *testing.T) {
	c, err := New("", testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	servers := c.List()
	if len(servers) != 25 {
		t.Errorf("built-in servers = %d, want 25", len(servers))
	}

	osm, err := c.Get("OpenStreetMap")
	if err != nil {
		t.Fatalf("Get(OpenStreetMap): %v", err)
	}
	if osm.Scheme != domain.SchemeXYZ || osm.MaxZoom != 19 {
		t.Errorf("descriptor = %+v", osm)
	}

	bing, err := c.Get("Bing_Aerial")
	if err != nil {
		t.Fatalf("Get(Bing_Aerial): %v", err)
	}
	if bing.Scheme != domain.SchemeQuadkey {
		t.Errorf("bing scheme = %s, want quadkey", bing.Scheme)
	}

	wms, err := c.Get("Copernicus_Sentinel")
	if err != nil {
		t.Fatalf("Get(Copernicus_Sentinel): %v", err)
	}
	if wms.Scheme != domain.SchemeWMS {
		t.Errorf("sentinel scheme = %s, want wms", wms.Scheme)
	}

	if _, err := c.Get("nope"); !errors.Is(err, domain.ErrUnsupportedServer) {
		t.Errorf("unknown id err = %v, want ErrUnsupportedServer", err)
	}
}

func TestBuiltinEntriesValid(t *testing.T) {
	c, err := New("", testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, s := range c.List() {
		if err := s.Validate(); err != nil {
			t.Errorf("built-in server %s invalid: %v", s.ID, err)
		}
	}
}

func TestUserCatalogOverridesAndExtends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.yaml")
	userYAML := `servers:
  - id: OpenStreetMap
    name: Local OSM Mirror
    url: https://osm.internal/{z}/{x}/{y}.png
    scheme: xyz
    max_zoom: 18
    format: png
  - id: company_ortho
    name: Company Orthophotos
    url: https://tiles.company.example/ortho/{z}/{x}/{y}.png
    scheme: xyz
    max_zoom: 21
    format: png
`
	if err := os.WriteFile(path, []byte(userYAML), 0o644); err != nil {
		t.Fatalf("writing user catalog: %v", err)
	}

	c, err := New(path, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := len(c.List()); got != 26 {
		t.Errorf("servers = %d, want 26 (25 built-in, one overridden, one new)", got)
	}

	osm, err := c.Get("OpenStreetMap")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if osm.DisplayName != "Local OSM Mirror" || osm.MaxZoom != 18 {
		t.Errorf("override not applied: %+v", osm)
	}

	if _, err := c.Get("company_ortho"); err != nil {
		t.Errorf("new entry missing: %v", err)
	}
}

func TestUserCatalogRejectsBadEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.yaml")
	bad := `servers:
  - id: broken
    name: Broken
    url: https://tiles.example/static.png
    scheme: xyz
    max_zoom: 19
    format: png
`
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatalf("writing user catalog: %v", err)
	}
	if _, err := New(path, testLogger()); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput for template without placeholders", err)
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.yaml")
	write := func(maxZoom string) {
		yaml := `servers:
  - id: company_ortho
    name: Company Orthophotos
    url: https://tiles.company.example/ortho/{z}/{x}/{y}.png
    scheme: xyz
    max_zoom: ` + maxZoom + `
    format: png
`
		if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
			t.Fatalf("writing catalog: %v", err)
		}
	}
	write("19")

	c, err := New(path, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	w, err := NewWatcher(c, 50*time.Millisecond, testLogger())
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	write("21")

	deadline := time.After(5 * time.Second)
	for {
		s, err := c.Get("company_ortho")
		if err == nil && s.MaxZoom == 21 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("catalog never picked up the new max_zoom")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
