package raster

import (
	"image"

	"github.com/disintegration/gift"
)

// ResampleMethod names an interpolation kernel for baselevel resampling.
type ResampleMethod string

const (
	ResampleNearest ResampleMethod = "nearest"
	ResampleLinear  ResampleMethod = "bilinear"
	ResampleCubic   ResampleMethod = "cubic"
)

func (m ResampleMethod) interpolation() gift.Interpolation {
	switch m {
	case ResampleLinear:
		return gift.LinearInterpolation
	case ResampleCubic:
		return gift.CubicInterpolation
	default:
		return gift.NearestNeighborInterpolation
	}
}

// Resample resizes src to width x height using method, the same resize
// filter the teacher uses for generating HiDPI tile variants, repurposed
// here for baselevel up/down sampling between zoom levels.
func Resample(src image.Image, width, height int, method ResampleMethod) image.Image {
	g := gift.New(gift.Resize(width, height, method.interpolation()))
	dst := image.NewNRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}

// Crop extracts the rectangle r from src, used to pull a single child's
// share out of an assembled mosaic before or after resampling.
func Crop(src image.Image, r image.Rectangle) image.Image {
	g := gift.New(gift.Crop(r))
	dst := image.NewNRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}
