package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope", "config.yaml"))
	if err == nil || cfg != nil {
		// An explicit path that does not exist is an error.
		t.Fatalf("expected error for missing explicit config file, got cfg=%v err=%v", cfg, err)
	}

	viper.Reset()
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load with defaults: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Pipeline.OutputSRID != 3857 {
		t.Errorf("default output srid = %d, want 3857", cfg.Pipeline.OutputSRID)
	}
	if cfg.Pipeline.FetchDeadline != 15*time.Minute {
		t.Errorf("default fetch deadline = %v", cfg.Pipeline.FetchDeadline)
	}
	if cfg.Fetch.Retries != 2 {
		t.Errorf("default retries = %d, want 2", cfg.Fetch.Retries)
	}
	if cfg.Pipeline.Kernel != "cubic" {
		t.Errorf("default kernel = %q, want cubic", cfg.Pipeline.Kernel)
	}
	if cfg.Server.CORS.Enabled() {
		t.Error("CORS should be disabled by default")
	}
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9000
  cors:
    allowed_origins: ["https://maps.example.com"]
pipeline:
  output_srid: 32633
  concurrency: 4
  planner:
    expansion: 0.2
    tile_ceiling: 500
fetch:
  user_agent: "acme-basemap/2.0"
artifact:
  backend: local
  local_path: /tmp/artifacts
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if !cfg.Server.CORS.Enabled() {
		t.Error("CORS should be enabled")
	}
	if cfg.Pipeline.OutputSRID != 32633 {
		t.Errorf("output srid = %d", cfg.Pipeline.OutputSRID)
	}
	if cfg.Pipeline.Planner.TileCeiling != 500 {
		t.Errorf("tile ceiling = %d", cfg.Pipeline.Planner.TileCeiling)
	}
	if cfg.Fetch.UserAgent != "acme-basemap/2.0" {
		t.Errorf("user agent = %q", cfg.Fetch.UserAgent)
	}
	if cfg.Artifact.Backend != "local" {
		t.Errorf("artifact backend = %q", cfg.Artifact.Backend)
	}
	// Defaults still fill unset sections.
	if cfg.Jobs.MaxConcurrent != 2 {
		t.Errorf("jobs max_concurrent = %d, want 2", cfg.Jobs.MaxConcurrent)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:   ServerConfig{Host: "127.0.0.1", Port: 8080},
			Pipeline: PipelineConfig{Concurrency: 8},
			Import:   ImportConfig{Mode: "local", Dir: "./rasters"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"zero concurrency", func(c *Config) { c.Pipeline.Concurrency = 0 }, true},
		{"tls without domains", func(c *Config) { c.TLS.Enabled = true; c.TLS.Email = "ops@example.com" }, true},
		{"unknown artifact backend", func(c *Config) { c.Artifact.Backend = "ftp" }, true},
		{"s3 without bucket", func(c *Config) { c.Artifact.Backend = "s3"; c.Artifact.S3.Region = "eu-west-1" }, true},
		{"remote import without endpoint", func(c *Config) { c.Import.Mode = "remote"; c.Import.Endpoint = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServerAddress(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 8081}
	if got := cfg.Address(); got != "127.0.0.1:8081" {
		t.Errorf("Address() = %q", got)
	}
}
