// Package tilegrid plans which tiles of the Web Mercator pyramid are
// needed to cover a requested extent at a requested ground resolution.
package tilegrid

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb/maptile"

	"github.com/geoforge/basemap/internal/domain"
	"github.com/geoforge/basemap/internal/proj"
)

// ZoomThreshold maps a maximum ground resolution in meters per pixel to
// the zoom level used up to that resolution.
type ZoomThreshold struct {
	MaxResolution float64 `mapstructure:"max_resolution" yaml:"max_resolution"`
	Zoom          int     `mapstructure:"zoom" yaml:"zoom"`
}

// Config tunes the planner. Zero values are replaced by the defaults.
type Config struct {
	// Thresholds must be sorted by ascending MaxResolution. A requested
	// resolution coarser than every threshold uses FallbackZoom.
	Thresholds   []ZoomThreshold `mapstructure:"thresholds"`
	FallbackZoom int             `mapstructure:"fallback_zoom"`

	// Expansion grows the requested extent on each side by this fraction
	// of its width and height before tiles are selected.
	Expansion float64 `mapstructure:"expansion"`

	// BufferTiles rings of extra tiles are added around the selection.
	BufferTiles int `mapstructure:"buffer_tiles"`

	// TileCeiling is the count above which Plan flags the selection as
	// oversized. The selection is still returned in full.
	TileCeiling int `mapstructure:"tile_ceiling"`
}

// DefaultConfig returns the planner defaults used when configuration
// leaves the planner section empty.
func DefaultConfig() Config {
	return Config{
		Thresholds: []ZoomThreshold{
			{MaxResolution: 5, Zoom: 16},
			{MaxResolution: 10, Zoom: 15},
			{MaxResolution: 20, Zoom: 14},
			{MaxResolution: 40, Zoom: 13},
			{MaxResolution: 80, Zoom: 12},
		},
		FallbackZoom: 11,
		Expansion:    0.1,
		BufferTiles:  1,
		TileCeiling:  2000,
	}
}

// Normalize fills unset fields from DefaultConfig and orders thresholds.
func (c Config) Normalize() Config {
	def := DefaultConfig()
	if len(c.Thresholds) == 0 {
		c.Thresholds = def.Thresholds
	}
	if c.FallbackZoom == 0 {
		c.FallbackZoom = def.FallbackZoom
	}
	if c.Expansion == 0 {
		c.Expansion = def.Expansion
	}
	if c.TileCeiling == 0 {
		c.TileCeiling = def.TileCeiling
	}
	sort.Slice(c.Thresholds, func(i, j int) bool {
		return c.Thresholds[i].MaxResolution < c.Thresholds[j].MaxResolution
	})
	return c
}

// Validate rejects configurations the planner cannot act on.
func (c Config) Validate() error {
	for _, th := range c.Thresholds {
		if th.MaxResolution <= 0 {
			return domain.NewValidationError("planner.thresholds", "max_resolution must be positive")
		}
		if th.Zoom < 0 || th.Zoom > 23 {
			return domain.NewValidationError("planner.thresholds", "zoom out of range")
		}
	}
	if c.FallbackZoom < 0 || c.FallbackZoom > 23 {
		return domain.NewValidationError("planner.fallback_zoom", "zoom out of range")
	}
	if c.Expansion < 0 {
		return domain.NewValidationError("planner.expansion", "must not be negative")
	}
	if c.BufferTiles < 0 {
		return domain.NewValidationError("planner.buffer_tiles", "must not be negative")
	}
	return nil
}

// Plan is the tile selection for one request.
type Plan struct {
	Zoom int

	// Tiles in row-major order over the selected range.
	Tiles []maptile.Tile

	// Expanded is the WGS84 extent after expansion, before buffering.
	Expanded domain.BoundingBox

	// Oversized is set when the count exceeds the configured ceiling.
	Oversized bool
}

// Planner selects zoom levels and tile ranges for requested extents.
type Planner struct {
	cfg Config
}

// NewPlanner builds a planner from the given, possibly partial, config.
func NewPlanner(cfg Config) (*Planner, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Planner{cfg: cfg}, nil
}

// ZoomForResolution picks the zoom for a ground resolution in meters per
// pixel. Finer resolutions get deeper zooms; resolutions coarser than
// every threshold use the fallback zoom.
func (p *Planner) ZoomForResolution(resolution float64) int {
	for _, th := range p.cfg.Thresholds {
		if resolution <= th.MaxResolution {
			return th.Zoom
		}
	}
	return p.cfg.FallbackZoom
}

// Plan expands the WGS84 extent, picks a zoom for the resolution, and
// enumerates the covering tile range plus the configured buffer ring.
// maxZoom caps the zoom when the chosen server stops earlier; pass 0
// for no cap.
func (p *Planner) Plan(bbox domain.BoundingBox, resolution float64, maxZoom int) (Plan, error) {
	if bbox.SRID != domain.SRIDWGS84 {
		return Plan{}, fmt.Errorf("planner wants WGS84 input, got srid %d: %w", bbox.SRID, domain.ErrInvalidInput)
	}
	if err := bbox.Validate(); err != nil {
		return Plan{}, err
	}
	if resolution <= 0 {
		return Plan{}, domain.NewValidationError("resolution", "must be positive")
	}

	zoom := p.ZoomForResolution(resolution)
	if maxZoom > 0 && zoom > maxZoom {
		zoom = maxZoom
	}

	expanded := bbox.Expand(p.cfg.Expansion)

	// Upper-left and lower-right corner tiles of the expanded extent.
	ul := proj.LatLonToTile(expanded.MaxY, expanded.MinX, zoom)
	lr := proj.LatLonToTile(expanded.MinY, expanded.MaxX, zoom)

	n := int64(1) << uint(zoom)
	minX := clampTile(int64(ul.X)-int64(p.cfg.BufferTiles), n)
	maxX := clampTile(int64(lr.X)+int64(p.cfg.BufferTiles), n)
	minY := clampTile(int64(ul.Y)-int64(p.cfg.BufferTiles), n)
	maxY := clampTile(int64(lr.Y)+int64(p.cfg.BufferTiles), n)

	count := (maxX - minX + 1) * (maxY - minY + 1)
	tiles := make([]maptile.Tile, 0, count)
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			tiles = append(tiles, maptile.New(uint32(x), uint32(y), maptile.Zoom(zoom)))
		}
	}

	return Plan{
		Zoom:      zoom,
		Tiles:     tiles,
		Expanded:  expanded,
		Oversized: len(tiles) > p.cfg.TileCeiling,
	}, nil
}

// Ceiling exposes the configured tile ceiling for log messages.
func (p *Planner) Ceiling() int { return p.cfg.TileCeiling }

func clampTile(v, n int64) int64 {
	if v < 0 {
		return 0
	}
	if v > n-1 {
		return n - 1
	}
	return v
}
