// Package types holds the OSM-domain value types the datasource package
// speaks in: extracted features grouped by category, and the artifact one
// area fetch produces.
package types

import (
	"time"

	"github.com/paulmach/orb"
)

// FeatureType categorizes a geographic feature extracted from OSM.
type FeatureType string

const (
	FeatureTypeWater    FeatureType = "water"
	FeatureTypeRiver    FeatureType = "river"
	FeatureTypePark     FeatureType = "park"
	FeatureTypeRoad     FeatureType = "road"
	FeatureTypeBuilding FeatureType = "building"
	FeatureTypeUnknown  FeatureType = "unknown"
)

// Feature is one geographic feature extracted from an Overpass response.
type Feature struct {
	ID         string                 // OSM element ID (e.g. "way/12345")
	Type       FeatureType
	Geometry   orb.Geometry
	Properties map[string]interface{} // OSM tags
	Name       string
}

// FeatureCollection groups extracted features by category.
type FeatureCollection struct {
	Water     []Feature // lakes, coastlines (polygonal water bodies)
	Rivers    []Feature // rivers, streams, canals (linear waterways)
	Parks     []Feature // parks, forests, green spaces
	Roads     []Feature // streets, highways
	Buildings []Feature // building footprints
}

// Count returns the total number of features across all categories.
func (fc FeatureCollection) Count() int {
	return len(fc.Water) + len(fc.Rivers) + len(fc.Parks) + len(fc.Roads) + len(fc.Buildings)
}

// FeatureCounts returns per-category counts, plus "total".
func (fc FeatureCollection) FeatureCounts() map[string]int {
	return map[string]int{
		"water":     len(fc.Water),
		"rivers":    len(fc.Rivers),
		"parks":     len(fc.Parks),
		"roads":     len(fc.Roads),
		"buildings": len(fc.Buildings),
		"total":     fc.Count(),
	}
}

// TileData is the artifact one Overpass area fetch produces: every feature
// found within Bounds, tagged with the zoom the query was filtered for.
type TileData struct {
	Bounds    [4]float64 // minLon, minLat, maxLon, maxLat
	Zoom      uint32
	Features  FeatureCollection
	FetchedAt time.Time
	Source    string
}
