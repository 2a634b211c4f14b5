package output

import (
	"context"

	"github.com/geoforge/basemap/internal/domain"
)

// WMSRequest describes an extent to be filled by a WMS-capable
// collaborator instead of the tile pipeline.
type WMSRequest struct {
	URL        string             `json:"url"`
	Layers     string             `json:"layers"`
	BBox       domain.BoundingBox `json:"bbox"`
	Resolution float64            `json:"resolution"`
	Output     string             `json:"output"`
	Provenance domain.Provenance  `json:"provenance"`
}

// RasterImporter hands finished rasters to the consuming system. The
// local implementation writes sidecar files next to the raster; the
// remote one posts to a collaborator service.
type RasterImporter interface {
	// ImportRaster registers a built mosaic under the requested output
	// name and returns a reference to the imported raster.
	ImportRaster(ctx context.Context, result domain.MosaicResult, prov domain.Provenance, output string) (string, error)

	// ImportWMS delegates a WMS extent to the collaborator. Importers
	// without WMS support return domain.ErrUnsupported.
	ImportWMS(ctx context.Context, req WMSRequest) (string, error)
}
