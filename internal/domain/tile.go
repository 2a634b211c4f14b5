package domain

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/paulmach/orb/maptile"
)

// TileSize is the edge length in pixels of a standard web map tile.
const TileSize = 256

// ImageFormat identifies the encoding of a tile or mosaic image.
type ImageFormat string

// Supported image formats.
const (
	FormatPNG  ImageFormat = "png"
	FormatJPEG ImageFormat = "jpeg"
)

// ParseImageFormat normalizes a user-supplied format string.
func ParseImageFormat(s string) (ImageFormat, error) {
	switch strings.ToLower(s) {
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("image format %q: %w", s, ErrInvalidInput)
	}
}

// Extension returns the filename extension for the format.
func (f ImageFormat) Extension() string {
	if f == FormatJPEG {
		return "jpeg"
	}
	return "png"
}

// TileRequest asks for one tile from a tile server. Produced by the
// planner, consumed once by the fetcher.
type TileRequest struct {
	Tile        maptile.Tile // x/y/zoom in the standard quad-tree scheme
	ServerID    string       // catalog id, used for logs and metrics
	URLTemplate string       // template with {z}/{x}/{y}, {-y} or {quadkey}
	Format      ImageFormat  // expected payload encoding
	SRID        int          // CRS the fetched tile is georeferenced in
}

// URL resolves the request's template into a concrete tile URL.
// Quadkey templates are expanded from the tile index; XYZ templates get
// direct substitution, including the TMS-style {-y} row flip.
func (r TileRequest) URL() string {
	url := r.URLTemplate
	if strings.Contains(url, "{quadkey}") {
		return strings.ReplaceAll(url, "{quadkey}", Quadkey(r.Tile))
	}
	url = strings.ReplaceAll(url, "{z}", fmt.Sprintf("%d", r.Tile.Z))
	url = strings.ReplaceAll(url, "{x}", fmt.Sprintf("%d", r.Tile.X))
	url = strings.ReplaceAll(url, "{y}", fmt.Sprintf("%d", r.Tile.Y))
	url = strings.ReplaceAll(url, "{-y}", fmt.Sprintf("%d", (uint32(1)<<r.Tile.Z)-1-r.Tile.Y))
	return url
}

// FetchedTile is a validated tile image plus its georeference.
// Created only after signature validation succeeds; discarded after
// mosaic assembly.
type FetchedTile struct {
	Tile   maptile.Tile
	Data   []byte          // validated image bytes
	Path   string          // temp-file artifact holding Data
	Format ImageFormat     // sniffed from the payload
	Georef AffineTransform // pixel space -> output CRS
	SRID   int             // CRS of the georeference
}

// Quadkey converts a tile index to its Bing-style quadkey string, one
// base-4 digit per zoom level, most significant level first.
func Quadkey(t maptile.Tile) string {
	var sb strings.Builder
	for i := int(t.Z); i > 0; i-- {
		digit := byte('0')
		mask := uint32(1) << (i - 1)
		if t.X&mask != 0 {
			digit++
		}
		if t.Y&mask != 0 {
			digit += 2
		}
		sb.WriteByte(digit)
	}
	return sb.String()
}

// ParseQuadkey decodes a quadkey string back into a tile index.
func ParseQuadkey(key string) (maptile.Tile, error) {
	var x, y uint32
	zoom := len(key)
	for i, c := range key {
		if c < '0' || c > '3' {
			return maptile.Tile{}, fmt.Errorf("quadkey digit %q at position %d: %w", c, i, ErrInvalidInput)
		}
		mask := uint32(1) << (zoom - i - 1)
		if (c-'0')&1 != 0 {
			x |= mask
		}
		if (c-'0')&2 != 0 {
			y |= mask
		}
	}
	return maptile.New(x, y, maptile.Zoom(zoom)), nil
}

// Magic byte prefixes of the accepted tile payload encodings.
var (
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	gifMagic  = []byte("GIF8")
)

// ValidImageSignature reports whether the payload starts with a
// recognizable PNG, JPEG or GIF signature. Tile servers frequently
// return HTML error pages with status 200; the signature check is what
// catches those.
func ValidImageSignature(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	return bytes.HasPrefix(data, pngMagic) ||
		bytes.HasPrefix(data, jpegMagic) ||
		bytes.HasPrefix(data, gifMagic)
}

// SniffFormat returns the image format indicated by the payload's magic
// bytes. GIF payloads are reported as PNG since they are re-encoded on
// output anyway.
func SniffFormat(data []byte) ImageFormat {
	if bytes.HasPrefix(data, jpegMagic) {
		return FormatJPEG
	}
	return FormatPNG
}
