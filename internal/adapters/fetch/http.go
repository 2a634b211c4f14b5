// Package fetch downloads tiles over HTTP with validation and retries.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/geoforge/basemap/internal/domain"
	"github.com/geoforge/basemap/internal/ports/output"
	"github.com/geoforge/basemap/internal/proj"
)

// maxTileBytes bounds a single tile payload; anything bigger is not a
// map tile.
const maxTileBytes = 16 << 20

// Config holds HTTP fetcher settings.
type Config struct {
	// ConnectTimeout bounds TCP connection establishment.
	ConnectTimeout time.Duration

	// RequestTimeout bounds one whole request including body read.
	RequestTimeout time.Duration

	// Retries is the number of re-attempts after the first failure.
	Retries int

	// UserAgent sent with every request. Tile networks reject anonymous
	// clients, so this must never be empty.
	UserAgent string
}

// DefaultConfig returns the fetcher defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 30 * time.Second,
		Retries:        2,
		UserAgent:      "basemap/1.0",
	}
}

// HTTPFetcher implements output.TileFetcher over plain HTTP(S).
type HTTPFetcher struct {
	client  *http.Client
	cfg     Config
	logger  *slog.Logger
	metrics output.MetricsCollector
}

// NewHTTPFetcher creates a fetcher with its own tuned transport.
func NewHTTPFetcher(cfg Config, logger *slog.Logger, metrics output.MetricsCollector) *HTTPFetcher {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = DefaultConfig().ConnectTimeout
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}
	if metrics == nil {
		metrics = output.NewNoOpMetrics()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}

	return &HTTPFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		cfg:     cfg,
		logger:  logger.With("component", "tile_fetcher"),
		metrics: metrics,
	}
}

// Fetch implements output.TileFetcher. It retries transient failures
// with exponential backoff and stores the validated payload under
// destDir, named z_x_y with the sniffed extension.
func (f *HTTPFetcher) Fetch(ctx context.Context, req domain.TileRequest, destDir string) (domain.FetchedTile, error) {
	url := req.URL()
	start := time.Now()

	var data []byte
	attempts := 0
	op := func() error {
		attempts++
		body, err := f.download(ctx, url)
		if err != nil {
			f.logger.Debug("tile attempt failed",
				"tile", req.Tile,
				"attempt", attempts,
				"error", err)
			return err
		}
		if !domain.ValidImageSignature(body) {
			return fmt.Errorf("payload is not a png, jpeg or gif image")
		}
		data = body
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(f.cfg.Retries)),
		ctx)
	if err := backoff.Retry(op, bo); err != nil {
		f.metrics.RecordTileFetch(req.ServerID, false)
		return domain.FetchedTile{}, &domain.FetchError{
			Tile:     req.Tile,
			URL:      url,
			Attempts: attempts,
			Err:      err,
		}
	}

	format := domain.SniffFormat(data)

	path := filepath.Join(destDir, fmt.Sprintf("%d_%d_%d.%s",
		req.Tile.Z, req.Tile.X, req.Tile.Y, format.Extension()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return domain.FetchedTile{}, fmt.Errorf("writing tile %v: %w", req.Tile, err)
	}

	georef, err := proj.TileGeoreference(req.Tile, req.SRID)
	if err != nil {
		return domain.FetchedTile{}, err
	}

	f.metrics.RecordTileFetch(req.ServerID, true)
	f.metrics.ObserveFetchDuration(req.ServerID, time.Since(start))

	return domain.FetchedTile{
		Tile:   req.Tile,
		Data:   data,
		Path:   path,
		Format: format,
		Georef: georef,
		SRID:   req.SRID,
	}, nil
}

// download performs one HTTP GET and returns the body. Empty bodies and
// non-200 statuses are errors so the retry loop re-attempts them.
func (f *HTTPFetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTileBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	return body, nil
}
