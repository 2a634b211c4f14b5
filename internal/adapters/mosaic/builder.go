// Package mosaic composites fetched tiles into one georeferenced image.
package mosaic

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"

	_ "image/gif" // some servers deliver GIF tiles

	stddraw "image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/geoforge/basemap/internal/domain"
	"github.com/geoforge/basemap/internal/ports/output"
)

const jpegQuality = 90

// Builder implements output.MosaicBuilder with in-memory compositing.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a mosaic builder.
func NewBuilder(logger *slog.Logger) *Builder {
	return &Builder{logger: logger.With("component", "mosaic_builder")}
}

// Build implements output.MosaicBuilder. Tiles must all share one zoom
// level; pixels not covered by any tile stay zero.
func (b *Builder) Build(ctx context.Context, tiles []domain.FetchedTile, outPath string, opts output.BuildOptions) (domain.MosaicResult, error) {
	if len(tiles) == 0 {
		return domain.MosaicResult{}, &domain.BuildError{Stage: "composite", Err: fmt.Errorf("no tiles to assemble")}
	}

	zoom := tiles[0].Tile.Z
	minTX, minTY := tiles[0].Tile.X, tiles[0].Tile.Y
	maxTX, maxTY := minTX, minTY
	for _, t := range tiles {
		if t.Tile.Z != zoom {
			return domain.MosaicResult{}, &domain.BuildError{
				Stage: "composite",
				Err:   fmt.Errorf("mixed zoom levels %d and %d", zoom, t.Tile.Z),
			}
		}
		minTX = min(minTX, t.Tile.X)
		minTY = min(minTY, t.Tile.Y)
		maxTX = max(maxTX, t.Tile.X)
		maxTY = max(maxTY, t.Tile.Y)
	}

	cols := int(maxTX-minTX) + 1
	rows := int(maxTY-minTY) + 1
	canvas := image.NewRGBA(image.Rect(0, 0, cols*domain.TileSize, rows*domain.TileSize))

	extent := tiles[0].Georef.Extent(domain.TileSize, domain.TileSize, opts.SRID)
	for i, t := range tiles {
		if err := ctx.Err(); err != nil {
			return domain.MosaicResult{}, &domain.BuildError{Stage: "composite", Err: err}
		}
		img, _, err := image.Decode(bytes.NewReader(t.Data))
		if err != nil {
			return domain.MosaicResult{}, &domain.BuildError{
				Stage: "decode",
				Err:   fmt.Errorf("tile %d/%d/%d: %w", t.Tile.Z, t.Tile.X, t.Tile.Y, err),
			}
		}
		ox := int(t.Tile.X-minTX) * domain.TileSize
		oy := int(t.Tile.Y-minTY) * domain.TileSize
		rect := image.Rect(ox, oy, ox+domain.TileSize, oy+domain.TileSize)
		stddraw.Draw(canvas, rect, img, img.Bounds().Min, stddraw.Src)

		if i > 0 {
			extent = extent.Union(t.Georef.Extent(domain.TileSize, domain.TileSize, opts.SRID))
		}
	}

	out, resampled := b.fitToLimits(canvas, opts)

	width := out.Bounds().Dx()
	height := out.Bounds().Dy()
	georef := domain.NewNorthUpTransform(extent.MinX, extent.MinY, extent.MaxX, extent.MaxY, width, height)

	if err := b.encode(out, outPath, opts.Format); err != nil {
		return domain.MosaicResult{}, err
	}

	result := domain.MosaicResult{
		Path:      outPath,
		Format:    opts.Format,
		Width:     width,
		Height:    height,
		TileCount: len(tiles),
		Zoom:      int(zoom),
		Extent:    extent,
		Coverage:  float64(len(tiles)) / float64(cols*rows),
		Georef:    georef,
		SRID:      opts.SRID,
		Resampled: resampled,
	}

	b.logger.Info("mosaic assembled",
		"path", outPath,
		"width", width,
		"height", height,
		"tiles", len(tiles),
		"covered", fmt.Sprintf("%.1f%%", result.Coverage*100),
		"resampled", resampled)

	return result, nil
}

// fitToLimits downsamples the canvas when it exceeds the configured
// column or row caps, preserving the aspect ratio.
func (b *Builder) fitToLimits(canvas *image.RGBA, opts output.BuildOptions) (*image.RGBA, bool) {
	width := canvas.Bounds().Dx()
	height := canvas.Bounds().Dy()

	scale := 1.0
	if opts.MaxCols > 0 && width > opts.MaxCols {
		scale = float64(opts.MaxCols) / float64(width)
	}
	if opts.MaxRows > 0 && height > opts.MaxRows {
		if s := float64(opts.MaxRows) / float64(height); s < scale {
			scale = s
		}
	}
	if scale >= 1 {
		return canvas, false
	}

	scaler, smoothing := b.kernel(opts.Kernel)
	dst := image.NewRGBA(image.Rect(0, 0,
		int(float64(width)*scale), int(float64(height)*scale)))
	scaler.Scale(dst, dst.Bounds(), canvas, canvas.Bounds(), xdraw.Src, nil)
	return dst, smoothing
}

// kernel maps a configured name to a scaler. Unknown names degrade to
// nearest-neighbor so the build still finishes.
func (b *Builder) kernel(name string) (xdraw.Scaler, bool) {
	switch name {
	case "cubic", "":
		return xdraw.CatmullRom, true
	case "bilinear":
		return xdraw.BiLinear, true
	case "nearest":
		return xdraw.NearestNeighbor, false
	default:
		b.logger.Warn("unknown resampling kernel, falling back to nearest-neighbor", "kernel", name)
		return xdraw.NearestNeighbor, false
	}
}

func (b *Builder) encode(img image.Image, outPath string, format domain.ImageFormat) error {
	f, err := os.Create(outPath)
	if err != nil {
		return &domain.BuildError{Stage: "encode", Err: err}
	}
	defer f.Close()

	switch format {
	case domain.FormatJPEG:
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		return &domain.BuildError{Stage: "encode", Err: err}
	}
	return nil
}
