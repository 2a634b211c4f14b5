package output

import (
	"context"

	"github.com/geoforge/basemap/internal/domain"
)

// TileFetcher downloads a single tile to local storage. Implementations
// must validate that the response is a real raster image and retry
// transient failures within their own budget; a returned error means the
// tile is permanently unavailable for this run.
type TileFetcher interface {
	// Fetch downloads the tile described by req into destDir and returns
	// the stored tile together with its georeferencing.
	Fetch(ctx context.Context, req domain.TileRequest, destDir string) (domain.FetchedTile, error)
}

// BuildOptions tune mosaic assembly.
type BuildOptions struct {
	// Format of the output image.
	Format domain.ImageFormat

	// Kernel names the resampling filter: nearest, bilinear, or cubic.
	// An unknown name disables resampling instead of failing the build.
	Kernel string

	// MaxCols and MaxRows cap the output dimensions; zero means no cap.
	// A mosaic over a cap is downsampled to fit.
	MaxCols int
	MaxRows int

	// SRID of the georeferencing carried by the tiles.
	SRID int
}

// MosaicBuilder composites fetched tiles into one georeferenced image.
type MosaicBuilder interface {
	// Build assembles the tiles into a single image at outPath. Tiles
	// missing from the set leave nodata (zero) pixels. The tile slice is
	// never empty; callers abort on total fetch failure first.
	Build(ctx context.Context, tiles []domain.FetchedTile, outPath string, opts BuildOptions) (domain.MosaicResult, error)
}
