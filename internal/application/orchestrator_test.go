package application

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb/maptile"

	"github.com/geoforge/basemap/internal/domain"
)

func tileRequests(n int) []domain.TileRequest {
	reqs := make([]domain.TileRequest, n)
	for i := 0; i < n; i++ {
		reqs[i] = domain.TileRequest{
			Tile:        maptile.New(uint32(i%16), uint32(i/16), 8),
			ServerID:    "test",
			URLTemplate: "http://tiles.test/{z}/{x}/{y}.png",
			Format:      domain.FormatPNG,
			SRID:        domain.SRIDWebMercator,
		}
	}
	return reqs
}

func TestFetchAllCollectsEverything(t *testing.T) {
	fetcher := newMockFetcher()
	o := NewOrchestrator(fetcher, 4, testLogger())

	reqs := tileRequests(30)
	tiles, failed, err := o.FetchAll(context.Background(), reqs, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if failed != 0 {
		t.Errorf("failed = %d, want 0", failed)
	}
	if len(tiles) != 30 {
		t.Errorf("fetched = %d, want 30", len(tiles))
	}
	if got := len(fetcher.requests()); got != 30 {
		t.Errorf("fetcher saw %d requests, want 30", got)
	}
}

func TestFetchAllCountsFailures(t *testing.T) {
	fetcher := newMockFetcher()
	reqs := tileRequests(20)
	fetcher.failTile(reqs[3].Tile)
	fetcher.failTile(reqs[11].Tile)

	o := NewOrchestrator(fetcher, 4, testLogger())
	tiles, failed, err := o.FetchAll(context.Background(), reqs, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("partial failure must not abort the run: %v", err)
	}
	if failed != 2 {
		t.Errorf("failed = %d, want 2", failed)
	}
	if len(tiles) != 18 {
		t.Errorf("fetched = %d, want 18", len(tiles))
	}
}

func TestFetchAllTotalFailure(t *testing.T) {
	fetcher := newMockFetcher()
	reqs := tileRequests(5)
	for _, r := range reqs {
		fetcher.failTile(r.Tile)
	}

	o := NewOrchestrator(fetcher, 2, testLogger())
	tiles, failed, err := o.FetchAll(context.Background(), reqs, t.TempDir(), nil)
	if !errors.Is(err, domain.ErrNoTilesFetched) {
		t.Fatalf("err = %v, want ErrNoTilesFetched", err)
	}
	if failed != 5 {
		t.Errorf("failed = %d, want 5", failed)
	}
	if len(tiles) != 0 {
		t.Errorf("fetched = %d, want 0", len(tiles))
	}
}

func TestFetchAllEmptyInput(t *testing.T) {
	o := NewOrchestrator(newMockFetcher(), 2, testLogger())
	_, _, err := o.FetchAll(context.Background(), nil, t.TempDir(), nil)
	if !errors.Is(err, domain.ErrNoTilesFetched) {
		t.Errorf("err = %v, want ErrNoTilesFetched", err)
	}
}

func TestFetchAllCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := NewOrchestrator(newMockFetcher(), 2, testLogger())
	_, _, err := o.FetchAll(ctx, tileRequests(10), t.TempDir(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestFetchAllProgressCallback(t *testing.T) {
	fetcher := newMockFetcher()
	o := NewOrchestrator(fetcher, 4, testLogger())

	var last int
	reqs := tileRequests(12)
	_, _, err := o.FetchAll(context.Background(), reqs, t.TempDir(), func(done, total int) {
		if total != 12 {
			t.Errorf("total = %d, want 12", total)
		}
		last = done
	})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if last != 12 {
		t.Errorf("final progress = %d, want 12", last)
	}
}
