package domain

import (
	"fmt"
	"strings"
)

// AffineTransform maps pixel coordinates to a projected CRS using the
// six world-file coefficients. Pixel (0,0) is the upper-left corner;
// PixelSizeY is negative because row indices grow southward.
type AffineTransform struct {
	PixelSizeX float64 // ground width of one pixel
	RotY       float64 // row rotation, zero for north-up imagery
	RotX       float64 // column rotation, zero for north-up imagery
	PixelSizeY float64 // ground height of one pixel, negative
	OriginX    float64 // x of the upper-left corner
	OriginY    float64 // y of the upper-left corner
}

// NewNorthUpTransform builds the affine transform for an unrotated image
// covering the given projected extent with the given pixel dimensions.
func NewNorthUpTransform(minX, minY, maxX, maxY float64, widthPx, heightPx int) AffineTransform {
	return AffineTransform{
		PixelSizeX: (maxX - minX) / float64(widthPx),
		PixelSizeY: -(maxY - minY) / float64(heightPx),
		OriginX:    minX,
		OriginY:    maxY,
	}
}

// Apply maps a pixel coordinate into the target CRS.
func (a AffineTransform) Apply(px, py float64) (x, y float64) {
	x = a.OriginX + px*a.PixelSizeX + py*a.RotX
	y = a.OriginY + px*a.RotY + py*a.PixelSizeY
	return x, y
}

// Extent returns the projected bounding box of an image with the given
// pixel dimensions under this transform. Only valid for north-up
// transforms (zero rotation terms).
func (a AffineTransform) Extent(widthPx, heightPx int, srid int) BoundingBox {
	maxX := a.OriginX + float64(widthPx)*a.PixelSizeX
	minY := a.OriginY + float64(heightPx)*a.PixelSizeY
	return BoundingBox{
		MinX: a.OriginX,
		MinY: minY,
		MaxX: maxX,
		MaxY: a.OriginY,
		SRID: srid,
	}
}

// WorldFile renders the transform in ESRI world-file format: six lines,
// pixel width, both rotations, negative pixel height, then the center
// of the upper-left pixel.
func (a AffineTransform) WorldFile() string {
	cx := a.OriginX + a.PixelSizeX/2
	cy := a.OriginY + a.PixelSizeY/2
	var sb strings.Builder
	for _, v := range []float64{a.PixelSizeX, a.RotY, a.RotX, a.PixelSizeY, cx, cy} {
		fmt.Fprintf(&sb, "%.10f\n", v)
	}
	return sb.String()
}
