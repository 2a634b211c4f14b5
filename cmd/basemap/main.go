// Package main provides the entry point for the basemap service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/geoforge/basemap/internal/app"
	"github.com/geoforge/basemap/internal/config"
	"github.com/geoforge/basemap/internal/domain"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "basemap",
	Short: "Basemap - tile fetch and mosaic service",
	Long: `Basemap downloads map tiles from public tile servers and composites
them into a single georeferenced raster.

It can run as a REST service with asynchronous jobs, or fetch a single
basemap from the command line.

Features:
  - 25 built-in tile servers (OSM, Bing, ESRI, USGS, ...) plus custom URLs
  - Automatic zoom selection from the requested ground resolution
  - Concurrent, retried tile downloads
  - Web Mercator and UTM output with world-file georeferencing
  - Artifact upload to local disk, AWS S3, or Azure Blob Storage
  - TLS with automatic certificate management
  - Prometheus metrics`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("basemap %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Build Date: %s\n", buildDate)
	},
}

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List the available tile servers",
	RunE:  runServers,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch one basemap and exit",
	Long: `Fetch runs the full pipeline once: plan tiles for the given extent
and resolution, download them, composite the mosaic, and import the
georeferenced raster.`,
	RunE: runFetch,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")

	// Server flags
	rootCmd.Flags().String("host", "0.0.0.0", "server host")
	rootCmd.Flags().Int("port", 8080, "server port")
	rootCmd.Flags().Bool("tls", false, "enable TLS")
	rootCmd.Flags().StringSlice("tls-domains", nil, "TLS domains")
	rootCmd.Flags().String("tls-email", "", "TLS email for Let's Encrypt")

	// Catalog flags
	rootCmd.Flags().String("catalog", "", "user tile server catalog file")

	// CORS flags
	rootCmd.Flags().StringSlice("cors", nil, "allowed CORS origins (e.g., https://example.com,*.sub.domain.tld)")

	// Bind flags to viper
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("server.host", rootCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", rootCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("tls.enabled", rootCmd.Flags().Lookup("tls"))
	_ = viper.BindPFlag("tls.domains", rootCmd.Flags().Lookup("tls-domains"))
	_ = viper.BindPFlag("tls.email", rootCmd.Flags().Lookup("tls-email"))
	_ = viper.BindPFlag("catalog.path", rootCmd.Flags().Lookup("catalog"))
	_ = viper.BindPFlag("server.cors.allowed_origins", rootCmd.Flags().Lookup("cors"))

	// Fetch flags
	fetchCmd.Flags().String("output", "", "name for the output raster (required)")
	fetchCmd.Flags().String("server", "", "tile server id from the catalog")
	fetchCmd.Flags().String("url", "", "custom tile URL template overriding the catalog")
	fetchCmd.Flags().String("bbox", "", "extent as minX,minY,maxX,maxY (required)")
	fetchCmd.Flags().Float64("resolution", 0, "target ground resolution in meters per pixel (required)")
	fetchCmd.Flags().String("format", "png", "output image format (png, jpeg)")
	fetchCmd.Flags().Int("source-srid", 4326, "CRS of the bbox coordinates")
	fetchCmd.Flags().Int("output-srid", 3857, "CRS for the output georeference")
	fetchCmd.Flags().Int("maxcols", 0, "cap on output width in pixels")
	fetchCmd.Flags().Int("maxrows", 0, "cap on output height in pixels")
	fetchCmd.Flags().String("layers", "", "layer list for WMS servers")
	_ = fetchCmd.MarkFlagRequired("output")
	_ = fetchCmd.MarkFlagRequired("bbox")
	_ = fetchCmd.MarkFlagRequired("resolution")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serversCmd)
	rootCmd.AddCommand(fetchCmd)
}

func initConfig() {
	config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func runServer(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting basemap",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"import_mode", cfg.Import.Mode,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize application
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	// Start server in background
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "address", cfg.Server.Address())
		if err := application.Start(ctx); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		logger.Error("server error", "error", err)
		cancel()
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	logger.Info("shutting down server")
	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}

func runServers(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	application, err := oneShotApp(cfg, logger)
	if err != nil {
		return err
	}

	for _, srv := range application.Catalog.List() {
		fmt.Printf("%-24s %-32s max zoom %2d  %s\n", srv.ID, srv.DisplayName, srv.MaxZoom, srv.Scheme)
	}
	return nil
}

func runFetch(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	spec, err := specFromFlags(cmd)
	if err != nil {
		return err
	}

	application, err := oneShotApp(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	job, err := application.Pipeline.Fetch(ctx, spec)
	if err != nil {
		return fmt.Errorf("fetching basemap: %w", err)
	}

	if job.Result != nil {
		fmt.Printf("fetched %d/%d tiles at zoom %d\n", job.FetchedTiles, job.TotalTiles, job.Result.Zoom)
		fmt.Printf("imported %s (%dx%d, SRID %d)\n", job.ImportRef, job.Result.Width, job.Result.Height, job.Result.SRID)
	} else {
		fmt.Printf("delegated to WMS importer: %s\n", job.ImportRef)
	}
	return nil
}

// oneShotApp builds the application without server-side extras. CLI
// invocations do not persist jobs or expose metrics.
func oneShotApp(cfg *config.Config, logger *slog.Logger) (*app.App, error) {
	cfg.Metrics.Enabled = false
	cfg.Jobs.StorePath = ""
	cfg.Catalog.Watch = false

	application, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing application: %w", err)
	}
	return application, nil
}

// specFromFlags assembles the fetch spec from the command line.
func specFromFlags(cmd *cobra.Command) (domain.FetchSpec, error) {
	flags := cmd.Flags()

	bboxRaw, _ := flags.GetString("bbox")
	parts := strings.Split(bboxRaw, ",")
	if len(parts) != 4 {
		return domain.FetchSpec{}, fmt.Errorf("bbox must be minX,minY,maxX,maxY, got %q", bboxRaw)
	}
	var coords [4]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return domain.FetchSpec{}, fmt.Errorf("invalid bbox value %q", part)
		}
		coords[i] = v
	}

	formatRaw, _ := flags.GetString("format")
	format, err := domain.ParseImageFormat(formatRaw)
	if err != nil {
		return domain.FetchSpec{}, err
	}

	output, _ := flags.GetString("output")
	server, _ := flags.GetString("server")
	url, _ := flags.GetString("url")
	resolution, _ := flags.GetFloat64("resolution")
	sourceSRID, _ := flags.GetInt("source-srid")
	outputSRID, _ := flags.GetInt("output-srid")
	maxCols, _ := flags.GetInt("maxcols")
	maxRows, _ := flags.GetInt("maxrows")
	layers, _ := flags.GetString("layers")

	return domain.FetchSpec{
		Output:     output,
		ServerID:   server,
		CustomURL:  url,
		BBox:       domain.NewBoundingBox(coords[0], coords[1], coords[2], coords[3], sourceSRID),
		SourceSRID: sourceSRID,
		OutputSRID: outputSRID,
		Resolution: resolution,
		Format:     format,
		MaxCols:    maxCols,
		MaxRows:    maxRows,
		WMSLayers:  layers,
	}, nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(time.Now().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
