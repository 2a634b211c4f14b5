// Package config provides configuration management using Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/geoforge/basemap/internal/tilegrid"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Artifact ArtifactConfig `mapstructure:"artifact"`
	Import   ImportConfig   `mapstructure:"import"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	TLS      TLSConfig      `mapstructure:"tls"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"` // e.g., ["https://example.com", "*.sub.domain.tld"]
}

// Enabled returns true if CORS is configured with at least one allowed origin.
func (c *CORSConfig) Enabled() bool {
	return len(c.AllowedOrigins) > 0
}

// PipelineConfig tunes the fetch-and-mosaic pipeline.
type PipelineConfig struct {
	OutputSRID    int             `mapstructure:"output_srid"`
	FetchDeadline time.Duration   `mapstructure:"fetch_deadline"`
	Concurrency   int             `mapstructure:"concurrency"`
	Subdomains    []string        `mapstructure:"subdomains"`
	Kernel        string          `mapstructure:"kernel"` // cubic, bilinear, nearest
	WorkDir       string          `mapstructure:"work_dir"`
	Planner       tilegrid.Config `mapstructure:"planner"`
}

// FetchConfig holds tile download configuration.
type FetchConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Retries        int           `mapstructure:"retries"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// CatalogConfig holds tile server catalog configuration.
type CatalogConfig struct {
	// Path is an optional user catalog file overlaid on the builtin
	// server inventory.
	Path     string        `mapstructure:"path"`
	Watch    bool          `mapstructure:"watch"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// ArtifactConfig holds mosaic artifact storage configuration.
type ArtifactConfig struct {
	Backend   string      `mapstructure:"backend"` // none, local, s3, azure
	LocalPath string      `mapstructure:"local_path"`
	S3        S3Config    `mapstructure:"s3"`
	Azure     AzureConfig `mapstructure:"azure"`
}

// S3Config holds AWS S3 configuration.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string `mapstructure:"container"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Prefix           string `mapstructure:"prefix"`
}

// ImportConfig holds raster import configuration.
type ImportConfig struct {
	Mode     string        `mapstructure:"mode"` // local, remote
	Dir      string        `mapstructure:"dir"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// JobsConfig holds job queue and persistence configuration.
type JobsConfig struct {
	StorePath     string `mapstructure:"store_path"` // empty disables persistence
	MaxConcurrent int    `mapstructure:"max_concurrent"`
	QueueDepth    int    `mapstructure:"queue_depth"`
}

// TLSConfig holds TLS/CertMagic configuration.
type TLSConfig struct {
	Enabled  bool      `mapstructure:"enabled"`
	Domains  []string  `mapstructure:"domains"`
	Email    string    `mapstructure:"email"`
	CacheDir string    `mapstructure:"cache_dir"`
	Staging  bool      `mapstructure:"staging"` // Use Let's Encrypt staging
	DNS      DNSConfig `mapstructure:"dns"`
}

// DNSConfig holds Azure DNS provider configuration for DNS-01 challenges.
type DNSConfig struct {
	SubscriptionID    string `mapstructure:"subscription_id"`
	ResourceGroupName string `mapstructure:"resource_group_name"`
	ClientID          string `mapstructure:"client_id"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// Defaults sets the default configuration values.
func Defaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)
	viper.SetDefault("server.cors.allowed_origins", []string{})

	// Pipeline defaults
	viper.SetDefault("pipeline.output_srid", 3857)
	viper.SetDefault("pipeline.fetch_deadline", 15*time.Minute)
	viper.SetDefault("pipeline.concurrency", 8)
	viper.SetDefault("pipeline.subdomains", []string{"a", "b", "c"})
	viper.SetDefault("pipeline.kernel", "cubic")
	viper.SetDefault("pipeline.work_dir", "")
	viper.SetDefault("pipeline.planner.expansion", 0.1)
	viper.SetDefault("pipeline.planner.buffer_tiles", 1)
	viper.SetDefault("pipeline.planner.tile_ceiling", 2000)

	// Fetch defaults
	viper.SetDefault("fetch.connect_timeout", 10*time.Second)
	viper.SetDefault("fetch.request_timeout", 30*time.Second)
	viper.SetDefault("fetch.retries", 2)
	viper.SetDefault("fetch.user_agent", "basemap/1.0")

	// Catalog defaults
	viper.SetDefault("catalog.path", "")
	viper.SetDefault("catalog.watch", true)
	viper.SetDefault("catalog.debounce", 500*time.Millisecond)

	// Artifact defaults
	viper.SetDefault("artifact.backend", "none")
	viper.SetDefault("artifact.local_path", "./artifacts")

	// Import defaults
	viper.SetDefault("import.mode", "local")
	viper.SetDefault("import.dir", "./rasters")
	viper.SetDefault("import.timeout", 2*time.Minute)

	// Jobs defaults
	viper.SetDefault("jobs.store_path", "./basemap-jobs.db")
	viper.SetDefault("jobs.max_concurrent", 2)
	viper.SetDefault("jobs.queue_depth", 32)

	// TLS defaults
	viper.SetDefault("tls.enabled", false)
	viper.SetDefault("tls.cache_dir", "./.certmagic")
	viper.SetDefault("tls.staging", false)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)
	viper.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// Load loads configuration from environment and config file.
func Load(configPath string) (*Config, error) {
	Defaults()

	// Environment variable binding
	viper.SetEnvPrefix("BASEMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/basemap")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline concurrency must be at least 1")
	}

	if err := c.Pipeline.Planner.Normalize().Validate(); err != nil {
		return fmt.Errorf("pipeline planner: %w", err)
	}

	if c.TLS.Enabled {
		if len(c.TLS.Domains) == 0 {
			return fmt.Errorf("TLS enabled but no domains specified")
		}
		if c.TLS.Email == "" {
			return fmt.Errorf("TLS enabled but no email specified")
		}
	}

	switch c.Artifact.Backend {
	case "", "none":
	case "local":
		if c.Artifact.LocalPath == "" {
			return fmt.Errorf("local artifact path is required")
		}
	case "s3":
		if c.Artifact.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required")
		}
		if c.Artifact.S3.Region == "" {
			return fmt.Errorf("S3 region is required")
		}
	case "azure":
		if c.Artifact.Azure.Container == "" {
			return fmt.Errorf("azure container is required")
		}
		if c.Artifact.Azure.AccountName == "" && c.Artifact.Azure.ConnectionString == "" {
			return fmt.Errorf("azure account name or connection string is required")
		}
	default:
		return fmt.Errorf("unknown artifact backend: %s", c.Artifact.Backend)
	}

	switch c.Import.Mode {
	case "", "local":
		if c.Import.Dir == "" {
			return fmt.Errorf("import directory is required")
		}
	case "remote":
		if c.Import.Endpoint == "" {
			return fmt.Errorf("import endpoint is required")
		}
	default:
		return fmt.Errorf("unknown import mode: %s", c.Import.Mode)
	}

	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
