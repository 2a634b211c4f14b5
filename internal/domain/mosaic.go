package domain

import "time"

// FetchSpec is the input boundary of the pipeline: what to fetch, from
// where, and how to deliver it.
type FetchSpec struct {
	Output       string      // name for the output raster
	ServerID     string      // catalog server id; empty when CustomURL is set
	CustomURL    string      // user-supplied template overriding the catalog
	BBox         BoundingBox // region of interest, in SourceSRID
	SourceSRID   int         // CRS of BBox
	OutputSRID   int         // CRS for the mosaic georeference
	Resolution   float64     // average ground resolution, meters per pixel
	Format       ImageFormat // output encoding
	MaxCols      int         // cap on output width in pixels, 0 = none
	MaxRows      int         // cap on output height in pixels, 0 = none
	WMSLayers    string      // layer list for WMS servers
}

// MosaicResult is the terminal artifact of a pipeline run.
type MosaicResult struct {
	Path      string          // local path of the composite image
	Format    ImageFormat     // encoding of the composite
	Width     int             // pixel width
	Height    int             // pixel height
	TileCount int             // tiles actually composited
	Zoom      int             // zoom level the tiles were fetched at
	Extent    BoundingBox     // projected extent of the composite
	Coverage  float64         // fraction of grid positions with a tile
	Georef    AffineTransform // composite georeference
	SRID      int             // CRS of Extent and Georef
	Resampled bool            // false when the smoothing step fell back to overlay
}

// Provenance records where a mosaic came from, for metadata tagging.
type Provenance struct {
	Server      string `json:"server"`    // display name of the source server
	SourceURL   string `json:"sourceUrl"` // URL template the tiles were fetched from
	Title       string `json:"title"`     // human-readable map title
	Description string `json:"description"`
}

// JobStatus tracks the lifecycle of an asynchronous fetch job.
type JobStatus string

// Job lifecycle states. Terminal states are completed and failed.
const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is one asynchronous run of the basemap pipeline.
type Job struct {
	ID           string
	Spec         FetchSpec
	Status       JobStatus
	TotalTiles   int
	FetchedTiles int
	FailedTiles  int
	Result       *MosaicResult
	ImportRef    string // handle returned by the raster importer
	Error        string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// IsTerminal reports whether the job has finished, successfully or not.
func (j *Job) IsTerminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}
