// Package proj converts between geographic coordinates, tile indices,
// and projected output coordinate systems. All functions are pure: no
// I/O, no shared state.
package proj

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/project"

	"github.com/geoforge/basemap/internal/domain"
)

// DefaultSRID is the documented fallback when a requested CRS cannot be
// resolved: Web Mercator, the native CRS of the tile grid itself.
const DefaultSRID = domain.SRIDWebMercator

// WebMercatorLatLimit is the latitude at which the square Web Mercator
// world ends.
const WebMercatorLatLimit = 85.05112878

// Supported reports whether the SRID can be transformed by this package:
// WGS84, Web Mercator, and the WGS84 UTM zones (326xx north, 327xx south).
func Supported(srid int) bool {
	switch {
	case srid == domain.SRIDWGS84, srid == domain.SRIDWebMercator:
		return true
	default:
		_, _, err := utmZone(srid)
		return err == nil
	}
}

// ResolveSRID returns a usable SRID for the request. Unsupported values
// fall back to DefaultSRID; the second return value tells the caller to
// log the substitution.
func ResolveSRID(srid int) (resolved int, fellBack bool) {
	if srid == 0 || !Supported(srid) {
		return DefaultSRID, true
	}
	return srid, false
}

// ToLatLon converts a point in the given CRS to WGS84 lon/lat.
func ToLatLon(x, y float64, srid int) (lon, lat float64, err error) {
	switch {
	case srid == domain.SRIDWGS84:
		return x, y, nil
	case srid == domain.SRIDWebMercator:
		p := project.Mercator.ToWGS84(orb.Point{x, y})
		return p[0], p[1], nil
	default:
		zone, south, zerr := utmZone(srid)
		if zerr != nil {
			return 0, 0, fmt.Errorf("srid %d: %w", srid, domain.ErrUnsupportedCRS)
		}
		return utmToLatLon(x, y, zone, south)
	}
}

// FromLatLon projects a WGS84 lon/lat point into the given CRS. This is
// the projection used for georeferencing output tiles.
func FromLatLon(lon, lat float64, srid int) (x, y float64, err error) {
	switch {
	case srid == domain.SRIDWGS84:
		return lon, lat, nil
	case srid == domain.SRIDWebMercator:
		p := project.WGS84.ToMercator(orb.Point{lon, lat})
		return p[0], p[1], nil
	default:
		zone, south, zerr := utmZone(srid)
		if zerr != nil {
			return 0, 0, fmt.Errorf("srid %d: %w", srid, domain.ErrUnsupportedCRS)
		}
		return latLonToUTM(lat, lon, zone, south)
	}
}

// BoundToLatLon converts a bounding box in any supported CRS to WGS84.
func BoundToLatLon(b domain.BoundingBox) (domain.BoundingBox, error) {
	if b.SRID == domain.SRIDWGS84 {
		return b, nil
	}
	minLon, minLat, err := ToLatLon(b.MinX, b.MinY, b.SRID)
	if err != nil {
		return domain.BoundingBox{}, err
	}
	maxLon, maxLat, err := ToLatLon(b.MaxX, b.MaxY, b.SRID)
	if err != nil {
		return domain.BoundingBox{}, err
	}
	return domain.NewBoundingBox(minLon, minLat, maxLon, maxLat, domain.SRIDWGS84), nil
}

// LatLonToTile returns the tile containing the point at the given zoom,
// clamped into the valid tile range.
func LatLonToTile(lat, lon float64, zoom int) maptile.Tile {
	n := math.Exp2(float64(zoom))

	x := math.Floor((lon + 180) / 360 * n)

	latRad := lat * math.Pi / 180
	y := math.Floor((1 - math.Asinh(math.Tan(latRad))/math.Pi) / 2 * n)

	max := n - 1
	x = math.Min(math.Max(x, 0), max)
	y = math.Min(math.Max(y, 0), max)

	return maptile.New(uint32(x), uint32(y), maptile.Zoom(zoom))
}

// TileToLatLon returns the lon/lat of the tile's upper-left corner.
func TileToLatLon(t maptile.Tile) (lon, lat float64) {
	n := math.Exp2(float64(t.Z))
	lon = float64(t.X)/n*360 - 180
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*float64(t.Y)/n)))
	lat = latRad * 180 / math.Pi
	return lon, lat
}

// TileBounds returns the WGS84 bounding box of a tile.
func TileBounds(t maptile.Tile) domain.BoundingBox {
	minLon, maxLat := TileToLatLon(t)
	maxLon, minLat := TileToLatLon(maptile.New(t.X+1, t.Y+1, t.Z))
	return domain.NewBoundingBox(minLon, minLat, maxLon, maxLat, domain.SRIDWGS84)
}

// TileGeoreference projects a tile's corners into the output CRS and
// derives the per-tile affine transform for a TileSize-square image.
func TileGeoreference(t maptile.Tile, srid int) (domain.AffineTransform, error) {
	b := TileBounds(t)
	minX, maxY, err := FromLatLon(b.MinX, b.MaxY, srid)
	if err != nil {
		return domain.AffineTransform{}, err
	}
	maxX, minY, err := FromLatLon(b.MaxX, b.MinY, srid)
	if err != nil {
		return domain.AffineTransform{}, err
	}
	return domain.NewNorthUpTransform(minX, minY, maxX, maxY, domain.TileSize, domain.TileSize), nil
}

// GroundResolution returns the nominal meters-per-pixel of the tile grid
// at the given latitude and zoom.
func GroundResolution(lat float64, zoom int) float64 {
	circumference := 2 * math.Pi * 6378137.0
	return circumference * math.Cos(lat*math.Pi/180) / (math.Exp2(float64(zoom)) * domain.TileSize)
}
