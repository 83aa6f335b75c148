package tile

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// Coords represents a tile coordinate in the Web Mercator tile system (z/x/y)
type Coords struct {
	Z uint32 // Zoom level (0-18)
	X uint32 // X coordinate (column)
	Y uint32 // Y coordinate (row)
}

// String returns the tile coordinate as a string in format "z{zoom}_x{x}_y{y}"
func (c Coords) String() string {
	return fmt.Sprintf("z%d_x%d_y%d", c.Z, c.X, c.Y)
}

// Tile returns the maptile.Tile for this coordinate
func (c Coords) Tile() maptile.Tile {
	return maptile.New(c.X, c.Y, maptile.Zoom(c.Z))
}

// Bounds returns the geographic bounding box for this tile in WGS84 (EPSG:4326)
// Returns [minLon, minLat, maxLon, maxLat]
func (c Coords) Bounds() [4]float64 {
	tile := c.Tile()
	bound := tile.Bound()

	return [4]float64{
		bound.Min.Lon(), // minLon
		bound.Min.Lat(), // minLat
		bound.Max.Lon(), // maxLon
		bound.Max.Lat(), // maxLat
	}
}

// Center returns the center point of the tile in WGS84 (lon, lat)
func (c Coords) Center() (float64, float64) {
	bounds := c.Bounds()
	lon := (bounds[0] + bounds[2]) / 2.0
	lat := (bounds[1] + bounds[3]) / 2.0
	return lon, lat
}

// NewCoords creates a new Coords from zoom, x, y values
func NewCoords(z, x, y uint32) Coords {
	return Coords{Z: z, X: x, Y: y}
}

// ParseCoords parses a tile string like "z13_x4297_y2754" into Coords
func ParseCoords(s string) (Coords, error) {
	var c Coords
	_, err := fmt.Sscanf(s, "z%d_x%d_y%d", &c.Z, &c.X, &c.Y)
	if err != nil {
		return c, fmt.Errorf("invalid tile coordinate format: %s", s)
	}
	return c, nil
}

// TilesInBBox returns all tile coordinates within a bounding box across a zoom range.
// bbox: [minLon, minLat, maxLon, maxLat] in WGS84
// Calculates correct tile coordinates at each zoom level independently.
func TilesInBBox(bbox [4]float64, zoomMin, zoomMax int) []Coords {
	minLon, minLat, maxLon, maxLat := bbox[0], bbox[1], bbox[2], bbox[3]

	// Pre-allocate with estimated capacity
	estimatedCount := TileCount(bbox, zoomMin, zoomMax)
	tiles := make([]Coords, 0, estimatedCount)

	minPoint := orb.Point{minLon, minLat}
	maxPoint := orb.Point{maxLon, maxLat}

	for z := zoomMin; z <= zoomMax; z++ {
		zoom := maptile.Zoom(z)

		// Get tile coordinates at this zoom level
		minTile := maptile.At(minPoint, zoom)
		maxTile := maptile.At(maxPoint, zoom)

		// Ensure min/max are correctly ordered (Y is inverted in TMS)
		minX, maxX := minTile.X, maxTile.X
		if minX > maxX {
			minX, maxX = maxX, minX
		}

		minY, maxY := minTile.Y, maxTile.Y
		if minY > maxY {
			minY, maxY = maxY, minY
		}

		// Generate all tiles at this zoom level
		for x := minX; x <= maxX; x++ {
			for y := minY; y <= maxY; y++ {
				tiles = append(tiles, NewCoords(uint32(z), x, y))
			}
		}
	}

	return tiles
}

// TileCount returns the number of tiles in a bounding box across a zoom range.
// This is useful for progress estimation without allocating the full tile list.
func TileCount(bbox [4]float64, zoomMin, zoomMax int) int {
	minLon, minLat, maxLon, maxLat := bbox[0], bbox[1], bbox[2], bbox[3]
	minPoint := orb.Point{minLon, minLat}
	maxPoint := orb.Point{maxLon, maxLat}

	count := 0
	for z := zoomMin; z <= zoomMax; z++ {
		zoom := maptile.Zoom(z)

		minTile := maptile.At(minPoint, zoom)
		maxTile := maptile.At(maxPoint, zoom)

		minX, maxX := minTile.X, maxTile.X
		if minX > maxX {
			minX, maxX = maxX, minX
		}

		minY, maxY := minTile.Y, maxTile.Y
		if minY > maxY {
			minY, maxY = maxY, minY
		}

		xCount := int(maxX - minX + 1)
		yCount := int(maxY - minY + 1)
		count += xCount * yCount
	}

	return count
}
