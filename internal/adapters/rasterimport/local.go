// Package rasterimport delivers finished rasters to the consuming
// system, either a local directory with georeferencing sidecars or a
// remote collaborator service.
package rasterimport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/geoforge/basemap/internal/domain"
	"github.com/geoforge/basemap/internal/ports/output"
)

// LocalImporter implements output.RasterImporter by placing the raster
// in a directory together with a world file and a provenance sidecar.
// GIS tools pick the georeferencing up from the world file.
type LocalImporter struct {
	dir    string
	logger *slog.Logger
}

// NewLocalImporter creates the output directory if needed.
func NewLocalImporter(dir string, logger *slog.Logger) (*LocalImporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating import directory: %w", err)
	}
	return &LocalImporter{
		dir:    dir,
		logger: logger.With("component", "local_importer"),
	}, nil
}

// ImportRaster implements output.RasterImporter.
func (l *LocalImporter) ImportRaster(ctx context.Context, result domain.MosaicResult, prov domain.Provenance, outputName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	base := filepath.Join(l.dir, filepath.Base(outputName))
	rasterPath := base + "." + result.Format.Extension()

	if err := copyFile(result.Path, rasterPath); err != nil {
		return "", &domain.ImportError{Target: rasterPath, Err: err}
	}

	worldPath := base + "." + worldExtension(result.Format)
	if err := os.WriteFile(worldPath, []byte(result.Georef.WorldFile()), 0o644); err != nil {
		return "", &domain.ImportError{Target: worldPath, Err: err}
	}

	meta := struct {
		domain.Provenance
		SRID     int     `json:"srid"`
		Zoom     int     `json:"zoom"`
		Tiles    int     `json:"tiles"`
		Coverage float64 `json:"coverage"`
	}{prov, result.SRID, result.Zoom, result.TileCount, result.Coverage}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", &domain.ImportError{Target: base, Err: err}
	}
	if err := os.WriteFile(base+".json", metaJSON, 0o644); err != nil {
		return "", &domain.ImportError{Target: base + ".json", Err: err}
	}

	l.logger.Info("raster imported",
		"raster", rasterPath,
		"world_file", worldPath,
		"source", prov.Server)
	return rasterPath, nil
}

// ImportWMS implements output.RasterImporter. The local importer has no
// WMS client; such servers need the remote collaborator.
func (l *LocalImporter) ImportWMS(ctx context.Context, req output.WMSRequest) (string, error) {
	return "", fmt.Errorf("wms server %s needs a remote importer: %w", req.URL, domain.ErrUnsupported)
}

// worldExtension derives the world-file extension from the image
// extension: first and last letter plus "w" (pngw -> pgw, jpegw -> jgw).
func worldExtension(format domain.ImageFormat) string {
	if format == domain.FormatJPEG {
		return "jgw"
	}
	return "pgw"
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dest)
		return err
	}
	return nil
}
