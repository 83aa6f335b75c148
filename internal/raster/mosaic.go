package raster

import (
	"fmt"
	"image"

	"github.com/MeKo-Tech/tilepyramid/internal/tile"
)

// CreateMosaic assembles a grid of child-zoom rasters into a single image,
// ready to be resampled down to the parent tile. children need not be
// exactly the four direct children of parent: when the output pyramid has a
// pixel buffer the caller enumerates neighbours too, so the grid spans
// whatever rectangle of child tiles was gathered. Missing cells (a child
// with no dependency and nothing in the output reader) are left transparent.
func CreateMosaic(children map[tile.Coords]Raster, tileSize int) (image.Image, float64, error) {
	if len(children) == 0 {
		return nil, 0, fmt.Errorf("raster: cannot build mosaic from zero children")
	}

	minX, minY := uint32(1<<31), uint32(1<<31)
	maxX, maxY := uint32(0), uint32(0)
	var nodata float64
	first := true
	for c := range children {
		if c.X < minX {
			minX = c.X
		}
		if c.Y < minY {
			minY = c.Y
		}
		if c.X > maxX {
			maxX = c.X
		}
		if c.Y > maxY {
			maxY = c.Y
		}
	}

	gridW := int(maxX-minX+1) * tileSize
	gridH := int(maxY-minY+1) * tileSize
	mosaic := image.NewNRGBA(image.Rect(0, 0, gridW, gridH))

	for c, r := range children {
		if r.IsZero() {
			continue
		}
		if first {
			nodata = r.NoData
			first = false
		}
		offX := int(c.X-minX) * tileSize
		offY := int(c.Y-minY) * tileSize
		Positioned(mosaic, r.Image, offX, offY)
	}

	return mosaic, nodata, nil
}
