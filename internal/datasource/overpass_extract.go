package datasource

import (
	"fmt"

	"github.com/MeKo-Christian/go-overpass"
	"github.com/paulmach/orb"

	"github.com/MeKo-Tech/tilepyramid/internal/types"
)

// ExtractFeaturesFromOverpassResult converts a raw Overpass result into a
// categorized types.FeatureCollection.
func ExtractFeaturesFromOverpassResult(result *overpass.Result) types.FeatureCollection {
	var features types.FeatureCollection
	if result == nil {
		return features
	}

	// Ways that are members of a multipolygon relation are assembled into
	// the relation's feature instead and must not also be rendered alone.
	memberWayIDs := make(map[int64]bool)
	for _, rel := range result.Relations {
		if rel.Tags["type"] != "multipolygon" {
			continue
		}
		for _, member := range rel.Members {
			if member.Type == "way" && member.Way != nil {
				memberWayIDs[member.Way.ID] = true
			}
		}
	}

	for _, way := range result.Ways {
		if memberWayIDs[way.ID] {
			continue
		}
		feature := convertWayToFeature(way)
		if feature == nil {
			continue
		}
		addFeature(&features, feature)
	}

	for _, rel := range result.Relations {
		var feature *types.Feature
		if rel.Tags["type"] == "multipolygon" {
			feature = convertMultipolygonRelationToFeature(rel)
		} else {
			feature = convertRelationToFeature(rel)
		}
		if feature == nil {
			continue
		}
		addFeature(&features, feature)
	}

	return features
}

func addFeature(features *types.FeatureCollection, f *types.Feature) {
	switch f.Type {
	case types.FeatureTypeWater:
		features.Water = append(features.Water, *f)
	case types.FeatureTypeRiver:
		features.Rivers = append(features.Rivers, *f)
	case types.FeatureTypePark:
		features.Parks = append(features.Parks, *f)
	case types.FeatureTypeRoad:
		features.Roads = append(features.Roads, *f)
	case types.FeatureTypeBuilding:
		features.Buildings = append(features.Buildings, *f)
	}
}

func convertWayToFeature(way *overpass.Way) *types.Feature {
	if way == nil || len(way.Geometry) == 0 {
		return nil
	}

	points := make(orb.LineString, len(way.Geometry))
	for i, p := range way.Geometry {
		points[i] = orb.Point{p.Lon, p.Lat}
	}

	var geometry orb.Geometry = points
	if len(points) > 2 && points[0] == points[len(points)-1] {
		geometry = orb.Polygon{orb.Ring(points)}
	}

	return &types.Feature{
		ID:         fmt.Sprintf("way/%d", way.ID),
		Type:       categorizeByTags(way.Tags),
		Geometry:   geometry,
		Properties: convertTags(way.Tags),
		Name:       way.Tags["name"],
	}
}

func convertRelationToFeature(rel *overpass.Relation) *types.Feature {
	if rel == nil {
		return nil
	}
	return &types.Feature{
		ID:         fmt.Sprintf("relation/%d", rel.ID),
		Type:       categorizeByTags(rel.Tags),
		Geometry:   orb.Point{},
		Properties: convertTags(rel.Tags),
		Name:       rel.Tags["name"],
	}
}

// convertMultipolygonRelationToFeature assembles a multipolygon relation
// from its embedded member ways. The go-overpass client doesn't expose
// unembedded way refs, so members only present by reference are skipped.
func convertMultipolygonRelationToFeature(rel *overpass.Relation) *types.Feature {
	if rel == nil {
		return nil
	}

	var outerRings, innerRings []orb.Ring
	for _, member := range rel.Members {
		if member.Type != "way" || member.Way == nil || len(member.Way.Geometry) == 0 {
			continue
		}

		points := make(orb.LineString, len(member.Way.Geometry))
		for i, p := range member.Way.Geometry {
			points[i] = orb.Point{p.Lon, p.Lat}
		}
		if len(points) > 0 && points[0] != points[len(points)-1] {
			points = append(points, points[0])
		}

		if member.Role == "inner" {
			innerRings = append(innerRings, orb.Ring(points))
		} else {
			outerRings = append(outerRings, orb.Ring(points))
		}
	}

	if len(outerRings) == 0 {
		return nil
	}

	var geometry orb.Geometry
	if len(outerRings) == 1 {
		rings := append([]orb.Ring{outerRings[0]}, innerRings...)
		geometry = orb.Polygon(rings)
	} else {
		// Multiple outer rings: a MultiPolygon, without assigning inner
		// rings to a specific outer ring.
		polygons := make(orb.MultiPolygon, len(outerRings))
		for i, outer := range outerRings {
			polygons[i] = orb.Polygon{outer}
		}
		geometry = polygons
	}

	return &types.Feature{
		ID:         fmt.Sprintf("relation/%d", rel.ID),
		Type:       categorizeByTags(rel.Tags),
		Geometry:   geometry,
		Properties: convertTags(rel.Tags),
		Name:       rel.Tags["name"],
	}
}

func categorizeByTags(tags map[string]string) types.FeatureType {
	switch {
	case isWater(tags):
		return types.FeatureTypeWater
	case isRiver(tags):
		return types.FeatureTypeRiver
	case isPark(tags):
		return types.FeatureTypePark
	case isRoad(tags):
		return types.FeatureTypeRoad
	case isBuilding(tags):
		return types.FeatureTypeBuilding
	default:
		return types.FeatureTypeUnknown
	}
}

// isWater reports polygonal water bodies only; linear waterways are
// categorized separately by isRiver so they aren't force-closed into rings.
func isWater(tags map[string]string) bool {
	return tags["natural"] == "water" || tags["natural"] == "coastline"
}

func isRiver(tags map[string]string) bool {
	return tags["waterway"] != ""
}

func isPark(tags map[string]string) bool {
	return tags["leisure"] == "park" ||
		tags["leisure"] == "garden" ||
		tags["landuse"] == "forest" ||
		tags["landuse"] == "grass" ||
		tags["landuse"] == "meadow"
}

func isRoad(tags map[string]string) bool {
	return tags["highway"] != ""
}

func isBuilding(tags map[string]string) bool {
	return tags["building"] != "" || tags["landuse"] == "residential"
}

func convertTags(tags map[string]string) map[string]interface{} {
	props := make(map[string]interface{}, len(tags))
	for k, v := range tags {
		props[k] = v
	}
	return props
}
