// Package app provides application initialization and wiring.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geoforge/basemap/internal/adapters/artifact"
	"github.com/geoforge/basemap/internal/adapters/catalog"
	"github.com/geoforge/basemap/internal/adapters/fetch"
	httpAdapter "github.com/geoforge/basemap/internal/adapters/http"
	"github.com/geoforge/basemap/internal/adapters/jobstore"
	"github.com/geoforge/basemap/internal/adapters/metrics"
	"github.com/geoforge/basemap/internal/adapters/mosaic"
	"github.com/geoforge/basemap/internal/adapters/rasterimport"
	tlsAdapter "github.com/geoforge/basemap/internal/adapters/tls"
	"github.com/geoforge/basemap/internal/application"
	"github.com/geoforge/basemap/internal/config"
	"github.com/geoforge/basemap/internal/ports/output"
	"github.com/geoforge/basemap/internal/tilegrid"
)

// App holds all application components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Catalog       *catalog.Catalog
	Watcher       *catalog.Watcher
	Pipeline      *application.Pipeline
	Jobs          *application.JobManager
	Health        *application.HealthService
	JobStore      output.JobStore
	HTTPServer    *httpAdapter.Server
	TLSServer     *tlsAdapter.Server
	Metrics       *metrics.Collector
	MetricsServer *metrics.Server
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize metrics
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector("basemap")
		app.MetricsServer = metrics.NewServer(
			cfg.Metrics.Port,
			cfg.Metrics.Path,
			logger,
		)
	}

	var metricsCollector output.MetricsCollector
	if app.Metrics != nil {
		metricsCollector = app.Metrics
	} else {
		metricsCollector = output.NewNoOpMetrics()
	}

	// Initialize tile server catalog
	cat, err := catalog.New(cfg.Catalog.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing catalog: %w", err)
	}
	app.Catalog = cat

	if cfg.Catalog.Watch && cfg.Catalog.Path != "" {
		w, err := catalog.NewWatcher(cat, cfg.Catalog.Debounce, logger)
		if err != nil {
			logger.Warn("failed to initialize catalog watcher", "error", err)
		} else {
			app.Watcher = w
		}
	}

	// Initialize tile planner
	planner, err := tilegrid.NewPlanner(cfg.Pipeline.Planner)
	if err != nil {
		return nil, fmt.Errorf("initializing planner: %w", err)
	}

	// Initialize tile fetcher and orchestrator
	fetcher := fetch.NewHTTPFetcher(fetch.Config{
		ConnectTimeout: cfg.Fetch.ConnectTimeout,
		RequestTimeout: cfg.Fetch.RequestTimeout,
		Retries:        cfg.Fetch.Retries,
		UserAgent:      cfg.Fetch.UserAgent,
	}, logger, metricsCollector)

	orchestrator := application.NewOrchestrator(fetcher, cfg.Pipeline.Concurrency, logger)

	// Initialize mosaic builder
	builder := mosaic.NewBuilder(logger)

	// Initialize raster importer
	importer, err := initImporter(cfg.Import, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing importer: %w", err)
	}

	// Initialize artifact store (optional)
	artifacts, err := initArtifacts(ctx, cfg.Artifact)
	if err != nil {
		return nil, fmt.Errorf("initializing artifact store: %w", err)
	}

	// Initialize job store (optional)
	if cfg.Jobs.StorePath != "" {
		store, err := jobstore.New(cfg.Jobs.StorePath)
		if err != nil {
			return nil, fmt.Errorf("initializing job store: %w", err)
		}
		app.JobStore = store
	}

	// Initialize pipeline
	app.Pipeline = application.NewPipeline(
		app.Catalog,
		planner,
		orchestrator,
		builder,
		importer,
		artifacts,
		app.JobStore,
		metricsCollector,
		logger,
		application.PipelineOptions{
			OutputSRID:    cfg.Pipeline.OutputSRID,
			FetchDeadline: cfg.Pipeline.FetchDeadline,
			Subdomains:    cfg.Pipeline.Subdomains,
			Kernel:        cfg.Pipeline.Kernel,
			WorkDir:       cfg.Pipeline.WorkDir,
		},
	)

	// Initialize job manager
	app.Jobs = application.NewJobManager(
		app.Pipeline,
		app.JobStore,
		metricsCollector,
		logger,
		cfg.Jobs.MaxConcurrent,
		cfg.Jobs.QueueDepth,
	)

	// Initialize health service
	app.Health = application.NewHealthService(app.Catalog, app.JobStore, app.Jobs)

	// Initialize HTTP server
	var extra []httpAdapter.Middleware
	if app.Metrics != nil {
		extra = append(extra, app.Metrics.Middleware)
	}
	app.HTTPServer = httpAdapter.NewServer(
		cfg.Server,
		app.Jobs,
		app.Catalog,
		app.Health,
		logger,
		extra...,
	)

	// Initialize TLS server if enabled
	if cfg.TLS.Enabled {
		tlsServer, err := tlsAdapter.NewServer(cfg.TLS, app.HTTPServer.Router(), logger)
		if err != nil {
			return nil, fmt.Errorf("initializing TLS: %w", err)
		}
		app.TLSServer = tlsServer
	}

	return app, nil
}

// Start starts all application components and blocks serving HTTP.
func (a *App) Start(ctx context.Context) error {
	// Mark jobs orphaned by a previous run as failed
	if a.JobStore != nil {
		if err := a.Jobs.Recover(ctx); err != nil {
			a.Logger.Warn("job recovery failed", "error", err)
		}
	}

	a.Jobs.Start()

	// Start catalog watcher
	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			a.Logger.Warn("failed to start catalog watcher", "error", err)
		}
	}

	// Start metrics server in background
	if a.MetricsServer != nil {
		go func() {
			if err := a.MetricsServer.Start(); err != nil && err.Error() != "http: Server closed" {
				a.Logger.Error("metrics server error", "error", err)
			}
		}()
	}

	// Start server
	if a.Config.TLS.Enabled && a.TLSServer != nil {
		return a.TLSServer.ListenAndServe(a.Config.Server.Address())
	}
	return a.HTTPServer.Start()
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	// Stop catalog watcher
	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}

	// Shutdown metrics server
	if a.MetricsServer != nil {
		if err := a.MetricsServer.Shutdown(ctx); err != nil {
			a.Logger.Error("metrics server shutdown error", "error", err)
		}
	}

	// Shutdown HTTP server
	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error("HTTP server shutdown error", "error", err)
	}

	// Drain running jobs before closing their store
	a.Jobs.Stop()

	if a.JobStore != nil {
		if err := a.JobStore.Close(); err != nil {
			a.Logger.Error("job store close error", "error", err)
		}
	}

	return nil
}

// initImporter initializes the raster importer.
func initImporter(cfg config.ImportConfig, logger *slog.Logger) (output.RasterImporter, error) {
	switch cfg.Mode {
	case "", "local":
		return rasterimport.NewLocalImporter(cfg.Dir, logger)

	case "remote":
		return rasterimport.NewRemoteImporter(cfg.Endpoint, cfg.Timeout, logger), nil

	default:
		return nil, fmt.Errorf("unknown import mode: %s", cfg.Mode)
	}
}

// initArtifacts initializes the artifact store. Backend "none" returns
// nil; the pipeline then skips artifact upload.
func initArtifacts(ctx context.Context, cfg config.ArtifactConfig) (output.ArtifactStore, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil

	case "local":
		return artifact.NewLocalStore(cfg.LocalPath)

	case "s3":
		return artifact.NewS3Store(ctx, artifact.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})

	case "azure":
		return artifact.NewAzureStore(artifact.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
		})

	default:
		return nil, fmt.Errorf("unknown artifact backend: %s", cfg.Backend)
	}
}
