// Package raster provides the minimal raster value type and the mosaic and
// resampling operations the tile-task runtime needs for baselevel
// interpolation. Decoding/encoding raster formats is out of scope (see
// the engine's external-interfaces contract); callers hand over an
// already-decoded image.Image and get one back.
package raster

import (
	"image"
	"image/draw"

	"github.com/MeKo-Tech/tilepyramid/internal/tile"
)

// Raster is a decoded tile image together with the no-data value its
// output sink uses and the tile address it was read for.
type Raster struct {
	Image  image.Image
	NoData float64
	Tile   tile.Coords
}

// IsZero reports whether r carries no image data.
func (r Raster) IsZero() bool {
	return r.Image == nil
}

// Positioned places src at an offset within dst using the standard library
// draw.Draw; it is the teacher's alphaOver loop generalized from
// same-bounds layer stacking to arbitrary positioned placement, used to
// assemble a mosaic of child tiles before resampling them down to a parent.
func Positioned(dst draw.Image, src image.Image, offsetX, offsetY int) {
	b := src.Bounds()
	r := image.Rect(offsetX, offsetY, offsetX+b.Dx(), offsetY+b.Dy())
	draw.Draw(dst, r, src, b.Min, draw.Over)
}
