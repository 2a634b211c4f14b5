package domain

import (
	"math"
	"strconv"
	"strings"
	"testing"
)

func TestNewNorthUpTransform(t *testing.T) {
	tr := NewNorthUpTransform(1000, 2000, 1512, 2256, 512, 256)

	if tr.PixelSizeX != 1.0 {
		t.Errorf("PixelSizeX = %g, want 1", tr.PixelSizeX)
	}
	if tr.PixelSizeY != -1.0 {
		t.Errorf("PixelSizeY = %g, want -1", tr.PixelSizeY)
	}
	if tr.OriginX != 1000 || tr.OriginY != 2256 {
		t.Errorf("origin = (%g, %g), want upper-left (1000, 2256)", tr.OriginX, tr.OriginY)
	}
	if tr.RotX != 0 || tr.RotY != 0 {
		t.Error("north-up transform must have zero rotation terms")
	}
}

func TestAffineApply(t *testing.T) {
	tr := NewNorthUpTransform(0, 0, 1024, 1024, 256, 256)

	// Upper-left pixel corner maps to the extent's upper-left.
	x, y := tr.Apply(0, 0)
	if x != 0 || y != 1024 {
		t.Errorf("Apply(0,0) = (%g, %g)", x, y)
	}

	// Lower-right corner maps to (maxX, minY).
	x, y = tr.Apply(256, 256)
	if x != 1024 || y != 0 {
		t.Errorf("Apply(256,256) = (%g, %g)", x, y)
	}
}

func TestAffineExtentRoundtrip(t *testing.T) {
	tr := NewNorthUpTransform(1480000, 6880000, 1503000, 6917000, 512, 512)

	box := tr.Extent(512, 512, SRIDWebMercator)
	if math.Abs(box.MinX-1480000) > 1e-6 || math.Abs(box.MaxY-6917000) > 1e-6 {
		t.Errorf("extent origin corner off: %+v", box)
	}
	if math.Abs(box.MaxX-1503000) > 1e-6 || math.Abs(box.MinY-6880000) > 1e-6 {
		t.Errorf("extent far corner off: %+v", box)
	}
	if box.SRID != SRIDWebMercator {
		t.Errorf("srid = %d", box.SRID)
	}
}

func TestWorldFile(t *testing.T) {
	tr := NewNorthUpTransform(0, 0, 2560, 2560, 256, 256)

	content := tr.WorldFile()
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) != 6 {
		t.Fatalf("world file has %d lines, want 6", len(lines))
	}

	parse := func(i int) float64 {
		v, err := strconv.ParseFloat(lines[i], 64)
		if err != nil {
			t.Fatalf("line %d %q: %v", i+1, lines[i], err)
		}
		return v
	}

	if got := parse(0); got != 10 {
		t.Errorf("pixel size x = %g, want 10", got)
	}
	if got := parse(1); got != 0 {
		t.Errorf("rotation y = %g", got)
	}
	if got := parse(2); got != 0 {
		t.Errorf("rotation x = %g", got)
	}
	if got := parse(3); got != -10 {
		t.Errorf("pixel size y = %g, want -10", got)
	}
	// Lines 5 and 6 reference the center of the upper-left pixel.
	if got := parse(4); got != 5 {
		t.Errorf("origin x = %g, want pixel center 5", got)
	}
	if got := parse(5); got != 2555 {
		t.Errorf("origin y = %g, want pixel center 2555", got)
	}
}
