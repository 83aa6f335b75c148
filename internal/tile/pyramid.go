package tile

import "fmt"

// Pyramid describes the tiling scheme a job processes against: the zoom
// range it spans, the metatile factor (how many base tiles a process tile
// covers on a side) and the pixel buffer added around each tile before
// clipping back to its native bounds.
type Pyramid struct {
	MinZoom    uint32
	MaxZoom    uint32
	Metatiling uint32 // 1, 2, 4, 8, ...
	PixelBuffer uint32
	TileSize   uint32
}

// NewPyramid returns a Pyramid with the teacher's usual 256px tiles, no
// metatiling and no buffer.
func NewPyramid(minZoom, maxZoom uint32) Pyramid {
	return Pyramid{
		MinZoom:    minZoom,
		MaxZoom:    maxZoom,
		Metatiling: 1,
		TileSize:   256,
	}
}

func (p Pyramid) Validate() error {
	if p.MinZoom > p.MaxZoom {
		return fmt.Errorf("tile: invalid pyramid, min zoom %d greater than max zoom %d", p.MinZoom, p.MaxZoom)
	}
	if p.Metatiling == 0 {
		return fmt.Errorf("tile: metatiling must be >= 1")
	}
	return nil
}

// ZoomLevels returns the zoom levels spanned by the pyramid, ascending.
func (p Pyramid) ZoomLevels() []uint32 {
	levels := make([]uint32, 0, p.MaxZoom-p.MinZoom+1)
	for z := p.MinZoom; z <= p.MaxZoom; z++ {
		levels = append(levels, z)
	}
	return levels
}

// ZoomLevelsDescending returns the zoom levels from MaxZoom down to MinZoom,
// the order baselevel generation walks so each level can resample from the
// one below it that was just finished.
func (p Pyramid) ZoomLevelsDescending() []uint32 {
	levels := p.ZoomLevels()
	for i, j := 0, len(levels)-1; i < j; i, j = i+1, j-1 {
		levels[i], levels[j] = levels[j], levels[i]
	}
	return levels
}
