// Package domain contains the core business entities and value objects.
package domain

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Common SRID constants.
const (
	SRIDWGS84       = 4326 // WGS 84 geographic
	SRIDWebMercator = 3857 // Web Mercator / spherical Mercator
)

// BoundingBox is a spatial extent in a stated coordinate system.
// Instances are values; derived boxes (expanded, unioned) are new values.
type BoundingBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
	SRID int
}

// NewBoundingBox creates a bounding box with the given SRID.
func NewBoundingBox(minX, minY, maxX, maxY float64, srid int) BoundingBox {
	return BoundingBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY, SRID: srid}
}

// Validate checks the min/max invariant and, for WGS84, coordinate ranges.
func (b BoundingBox) Validate() error {
	if b.MinX >= b.MaxX {
		return &ValidationError{
			Field:      "minx",
			Value:      b.MinX,
			Constraint: "minx < maxx",
			Message:    "western edge must be west of eastern edge",
		}
	}
	if b.MinY >= b.MaxY {
		return &ValidationError{
			Field:      "miny",
			Value:      b.MinY,
			Constraint: "miny < maxy",
			Message:    "southern edge must be south of northern edge",
		}
	}
	if b.SRID == SRIDWGS84 {
		if b.MinX < -180 || b.MaxX > 180 {
			return &ValidationError{
				Field:      "longitude",
				Value:      b.MinX,
				Constraint: "[-180, 180]",
				Message:    "longitude must be between -180 and 180",
			}
		}
		if b.MinY < -90 || b.MaxY > 90 {
			return &ValidationError{
				Field:      "latitude",
				Value:      b.MinY,
				Constraint: "[-90, 90]",
				Message:    "latitude must be between -90 and 90",
			}
		}
	}
	return nil
}

// Width returns the horizontal span of the box.
func (b BoundingBox) Width() float64 {
	return math.Abs(b.MaxX - b.MinX)
}

// Height returns the vertical span of the box.
func (b BoundingBox) Height() float64 {
	return math.Abs(b.MaxY - b.MinY)
}

// Expand returns a new box grown by the given fraction in every direction.
// Expand(0.1) grows a 10x10 box to 12x12 around the same center.
func (b BoundingBox) Expand(fraction float64) BoundingBox {
	dx := b.Width() * fraction
	dy := b.Height() * fraction
	return BoundingBox{
		MinX: b.MinX - dx,
		MinY: b.MinY - dy,
		MaxX: b.MaxX + dx,
		MaxY: b.MaxY + dy,
		SRID: b.SRID,
	}
}

// Union returns the smallest box covering both b and o.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	return BoundingBox{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
		SRID: b.SRID,
	}
}

// Contains checks whether the point lies inside the box.
func (b BoundingBox) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Covers checks whether o lies entirely inside b.
func (b BoundingBox) Covers(o BoundingBox) bool {
	return b.Contains(o.MinX, o.MinY) && b.Contains(o.MaxX, o.MaxY)
}

// Center returns the center point of the box.
func (b BoundingBox) Center() (x, y float64) {
	return (b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2
}

// Bound converts the box to an orb geometry bound.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinX, b.MinY},
		Max: orb.Point{b.MaxX, b.MaxY},
	}
}

// BoundingBoxFromBound converts an orb bound back into a BoundingBox.
func BoundingBoxFromBound(bound orb.Bound, srid int) BoundingBox {
	return BoundingBox{
		MinX: bound.Min[0],
		MinY: bound.Min[1],
		MaxX: bound.Max[0],
		MaxY: bound.Max[1],
		SRID: srid,
	}
}

// String returns a compact representation for logs.
func (b BoundingBox) String() string {
	return fmt.Sprintf("BOX(%g %g, %g %g) SRID=%d", b.MinX, b.MinY, b.MaxX, b.MaxY, b.SRID)
}
