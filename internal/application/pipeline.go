// Package application contains the use-case services that drive the
// basemap pipeline: planning, orchestration, assembly and delivery.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/geoforge/basemap/internal/domain"
	"github.com/geoforge/basemap/internal/ports/output"
	"github.com/geoforge/basemap/internal/proj"
	"github.com/geoforge/basemap/internal/tilegrid"
)

// PipelineOptions tune one pipeline instance. Zero values fall back to
// the documented defaults.
type PipelineOptions struct {
	// OutputSRID is used when a spec does not name one.
	OutputSRID int

	// FetchDeadline bounds one whole fetch run, all tiles included.
	FetchDeadline time.Duration

	// Subdomains fill the {s} placeholder, round-robin per tile.
	Subdomains []string

	// Kernel names the mosaic resampling filter.
	Kernel string

	// WorkDir hosts per-run temp directories. Empty means os.TempDir.
	WorkDir string
}

func (o PipelineOptions) withDefaults() PipelineOptions {
	if o.OutputSRID == 0 {
		o.OutputSRID = proj.DefaultSRID
	}
	if o.FetchDeadline == 0 {
		o.FetchDeadline = 15 * time.Minute
	}
	if len(o.Subdomains) == 0 {
		o.Subdomains = []string{"a", "b", "c"}
	}
	return o
}

// Pipeline implements input.BasemapService: one call takes a FetchSpec
// all the way to an imported, georeferenced raster.
type Pipeline struct {
	catalog      output.ServerCatalog
	planner      *tilegrid.Planner
	orchestrator *Orchestrator
	builder      output.MosaicBuilder
	importer     output.RasterImporter
	artifacts    output.ArtifactStore
	store        output.JobStore
	metrics      output.MetricsCollector
	logger       *slog.Logger
	opts         PipelineOptions
}

// NewPipeline wires the pipeline from its collaborators. The artifact
// store and job store may be nil; delivery then stops at the importer
// and job records stay in memory only.
func NewPipeline(
	catalog output.ServerCatalog,
	planner *tilegrid.Planner,
	orchestrator *Orchestrator,
	builder output.MosaicBuilder,
	importer output.RasterImporter,
	artifacts output.ArtifactStore,
	store output.JobStore,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	opts PipelineOptions,
) *Pipeline {
	if metrics == nil {
		metrics = output.NewNoOpMetrics()
	}
	return &Pipeline{
		catalog:      catalog,
		planner:      planner,
		orchestrator: orchestrator,
		builder:      builder,
		importer:     importer,
		artifacts:    artifacts,
		store:        store,
		metrics:      metrics,
		logger:       logger.With("component", "pipeline"),
		opts:         opts.withDefaults(),
	}
}

// Fetch implements input.BasemapService. It runs synchronously and
// returns the completed job record.
func (p *Pipeline) Fetch(ctx context.Context, spec domain.FetchSpec) (*domain.Job, error) {
	job := &domain.Job{
		ID:        uuid.NewString(),
		Spec:      spec,
		Status:    domain.JobPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.Run(ctx, job); err != nil {
		return job, err
	}
	return job, nil
}

// Run executes the pipeline for an already-created job record, updating
// the record in place and persisting it when a job store is configured.
func (p *Pipeline) Run(ctx context.Context, job *domain.Job) error {
	start := time.Now().UTC()
	job.Status = domain.JobRunning
	job.StartedAt = &start
	p.persist(ctx, job)

	err := p.run(ctx, job)

	end := time.Now().UTC()
	job.CompletedAt = &end
	if err != nil {
		job.Status = domain.JobFailed
		job.Error = err.Error()
	} else {
		job.Status = domain.JobCompleted
	}
	p.metrics.RecordJob(string(job.Status))
	p.persist(ctx, job)
	return err
}

func (p *Pipeline) run(ctx context.Context, job *domain.Job) error {
	spec := job.Spec
	if err := p.validateSpec(&spec); err != nil {
		return err
	}

	server, err := p.resolveServer(spec)
	if err != nil {
		return err
	}

	bbox, err := p.normalizeBBox(spec)
	if err != nil {
		return err
	}

	outputSRID := spec.OutputSRID
	if outputSRID == 0 {
		outputSRID = p.opts.OutputSRID
	}
	if resolved, fellBack := proj.ResolveSRID(outputSRID); fellBack {
		p.logger.Warn("output coordinate system not supported, using web mercator",
			"requested", outputSRID, "using", resolved)
		outputSRID = resolved
	}

	if server.Scheme == domain.SchemeWMS {
		return p.delegateWMS(ctx, job, server, bbox)
	}

	plan, err := p.planner.Plan(bbox, spec.Resolution, server.MaxZoom)
	if err != nil {
		return err
	}
	job.TotalTiles = len(plan.Tiles)
	if plan.Oversized {
		p.logger.Warn("tile selection is very large, expect a long run",
			"tiles", len(plan.Tiles), "ceiling", p.planner.Ceiling())
	}
	p.logger.Info("tile plan ready",
		"job", job.ID,
		"server", server.ID,
		"zoom", plan.Zoom,
		"tiles", len(plan.Tiles))

	tmpDir, err := os.MkdirTemp(p.opts.WorkDir, "basemap-*")
	if err != nil {
		return fmt.Errorf("creating work directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	reqs := make([]domain.TileRequest, len(plan.Tiles))
	for i, tile := range plan.Tiles {
		shard := p.opts.Subdomains[i%len(p.opts.Subdomains)]
		reqs[i] = domain.TileRequest{
			Tile:        tile,
			ServerID:    server.ID,
			URLTemplate: domain.ResolveSubdomain(server.URLTemplate, shard),
			Format:      server.Format,
			SRID:        outputSRID,
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.opts.FetchDeadline)
	defer cancel()

	tiles, failed, err := p.orchestrator.FetchAll(fetchCtx, reqs, tmpDir, func(done, total int) {
		p.logger.Info("fetch progress", "job", job.ID, "done", done, "total", total)
	})
	job.FetchedTiles = len(tiles)
	job.FailedTiles = failed
	if err != nil {
		return err
	}

	outPath := filepath.Join(tmpDir, spec.Output+"."+spec.Format.Extension())
	buildStart := time.Now()
	result, err := p.builder.Build(ctx, tiles, outPath, output.BuildOptions{
		Format:  spec.Format,
		Kernel:  p.opts.Kernel,
		MaxCols: spec.MaxCols,
		MaxRows: spec.MaxRows,
		SRID:    outputSRID,
	})
	if err != nil {
		return err
	}
	p.metrics.ObserveBuildDuration(time.Since(buildStart))

	if p.artifacts != nil {
		key := spec.Output + "." + spec.Format.Extension()
		ref, err := p.artifacts.Upload(ctx, result.Path, key)
		if err != nil {
			return fmt.Errorf("publishing artifact: %w", err)
		}
		p.logger.Info("artifact published", "job", job.ID, "store", p.artifacts.Name(), "ref", ref)
	}

	ref, err := p.importer.ImportRaster(ctx, result, p.provenance(server, result), spec.Output)
	if err != nil {
		return err
	}

	job.Result = &result
	job.ImportRef = ref
	p.logger.Info("basemap ready",
		"job", job.ID,
		"output", spec.Output,
		"ref", ref,
		"fetched", job.FetchedTiles,
		"failed", job.FailedTiles)
	return nil
}

// delegateWMS hands the extent to the WMS-capable importer; the tile
// pipeline plays no part beyond provenance.
func (p *Pipeline) delegateWMS(ctx context.Context, job *domain.Job, server domain.ServerDescriptor, bbox domain.BoundingBox) error {
	ref, err := p.importer.ImportWMS(ctx, output.WMSRequest{
		URL:        server.URLTemplate,
		Layers:     job.Spec.WMSLayers,
		BBox:       bbox,
		Resolution: job.Spec.Resolution,
		Output:     job.Spec.Output,
		Provenance: p.provenance(server, domain.MosaicResult{}),
	})
	if err != nil {
		return err
	}
	job.ImportRef = ref
	p.logger.Info("extent delegated to wms importer", "job", job.ID, "server", server.ID, "ref", ref)
	return nil
}

func (p *Pipeline) validateSpec(spec *domain.FetchSpec) error {
	if spec.Output == "" {
		return domain.NewValidationError("output", "output name is required")
	}
	if strings.ContainsAny(spec.Output, `/\`) {
		return domain.NewValidationError("output", "output name must not contain path separators")
	}
	if spec.Resolution <= 0 {
		return domain.NewValidationError("resolution", "must be positive")
	}
	if spec.ServerID == "" && spec.CustomURL == "" {
		return domain.NewValidationError("server", "either a server id or a custom url is required")
	}
	if spec.Format == "" {
		spec.Format = domain.FormatPNG
	}
	return nil
}

// resolveServer picks the tile source: a custom template wins over the
// catalog, an unknown id reports the valid ones.
func (p *Pipeline) resolveServer(spec domain.FetchSpec) (domain.ServerDescriptor, error) {
	if spec.CustomURL != "" {
		server := domain.CustomServer(spec.CustomURL, spec.Format)
		if err := server.Validate(); err != nil {
			return domain.ServerDescriptor{}, err
		}
		return server, nil
	}

	server, err := p.catalog.Get(spec.ServerID)
	if err != nil {
		ids := make([]string, 0)
		for _, s := range p.catalog.List() {
			ids = append(ids, s.ID)
		}
		sort.Strings(ids)
		return domain.ServerDescriptor{}, fmt.Errorf("%q: %w (known servers: %s)",
			spec.ServerID, domain.ErrUnsupportedServer, strings.Join(ids, ", "))
	}
	return server, nil
}

// normalizeBBox brings the requested extent into WGS84 for planning.
func (p *Pipeline) normalizeBBox(spec domain.FetchSpec) (domain.BoundingBox, error) {
	bbox := spec.BBox
	if bbox.SRID == 0 {
		bbox.SRID = spec.SourceSRID
	}
	if bbox.SRID == 0 {
		bbox.SRID = domain.SRIDWGS84
	}
	if _, fellBack := proj.ResolveSRID(bbox.SRID); fellBack {
		return domain.BoundingBox{}, fmt.Errorf("source srid %d: %w", bbox.SRID, domain.ErrUnsupportedCRS)
	}
	latlon, err := proj.BoundToLatLon(bbox)
	if err != nil {
		return domain.BoundingBox{}, err
	}
	if err := latlon.Validate(); err != nil {
		return domain.BoundingBox{}, err
	}
	return latlon, nil
}

func (p *Pipeline) provenance(server domain.ServerDescriptor, result domain.MosaicResult) domain.Provenance {
	desc := fmt.Sprintf("Basemap fetched from %s", server.DisplayName)
	if result.TileCount > 0 {
		desc = fmt.Sprintf("%s (%d tiles at zoom %d)", desc, result.TileCount, result.Zoom)
	}
	return domain.Provenance{
		Server:      server.DisplayName,
		SourceURL:   server.URLTemplate,
		Title:       fmt.Sprintf("Basemap: %s", server.DisplayName),
		Description: desc,
	}
}

func (p *Pipeline) persist(ctx context.Context, job *domain.Job) {
	if p.store == nil {
		return
	}
	if err := p.store.Save(ctx, job); err != nil {
		p.logger.Error("persisting job record", "job", job.ID, "error", err)
	}
}
