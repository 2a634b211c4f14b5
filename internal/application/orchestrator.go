package application

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/geoforge/basemap/internal/domain"
	"github.com/geoforge/basemap/internal/ports/output"
)

// DefaultConcurrency is the worker count used when none is configured.
const DefaultConcurrency = 8

// progressEvery controls how often the orchestrator logs fetch progress.
const progressEvery = 100

// Orchestrator fans tile requests out over a bounded worker pool.
// Individual tile failures are counted, not fatal; only a run where
// every tile fails aborts.
type Orchestrator struct {
	fetcher     output.TileFetcher
	concurrency int
	logger      *slog.Logger
}

// NewOrchestrator creates an orchestrator backed by the given fetcher.
func NewOrchestrator(fetcher output.TileFetcher, concurrency int, logger *slog.Logger) *Orchestrator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Orchestrator{
		fetcher:     fetcher,
		concurrency: concurrency,
		logger:      logger.With("component", "orchestrator"),
	}
}

// FetchAll downloads every requested tile into destDir and returns the
// successful tiles plus the failure count. The request order is
// shuffled so load spreads across a server's shards instead of walking
// rows. Returns domain.ErrNoTilesFetched only when nothing succeeded.
func (o *Orchestrator) FetchAll(ctx context.Context, reqs []domain.TileRequest, destDir string, onProgress func(done, total int)) ([]domain.FetchedTile, int, error) {
	if len(reqs) == 0 {
		return nil, 0, domain.ErrNoTilesFetched
	}

	shuffled := make([]domain.TileRequest, len(reqs))
	copy(shuffled, reqs)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	jobs := make(chan domain.TileRequest)

	var (
		mu      sync.Mutex
		fetched []domain.FetchedTile
		failed  int
		done    int
	)

	var wg sync.WaitGroup
	for w := 0; w < o.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range jobs {
				tile, err := o.fetcher.Fetch(ctx, req, destDir)

				mu.Lock()
				if err != nil {
					failed++
					o.logger.Warn("tile fetch failed",
						"tile", req.Tile,
						"server", req.ServerID,
						"error", err)
				} else {
					fetched = append(fetched, tile)
				}
				done++
				n := done
				mu.Unlock()

				if onProgress != nil && (n%progressEvery == 0 || n == len(reqs)) {
					onProgress(n, len(reqs))
				}
			}
		}()
	}

feed:
	for _, req := range shuffled {
		select {
		case jobs <- req:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if len(fetched) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, failed, err
		}
		return nil, failed, domain.ErrNoTilesFetched
	}

	if failed > 0 {
		o.logger.Warn("run finished with missing tiles",
			"fetched", len(fetched),
			"failed", failed)
	}
	return fetched, failed, nil
}
