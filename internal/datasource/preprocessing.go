package datasource

import (
	"context"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/tilepyramid/internal/config"
	"github.com/MeKo-Tech/tilepyramid/internal/tile"
)

// PreprocessingTask wraps an Overpass fetch over bounds as a
// config.PreprocessingTask keyed "<inputKey>:<taskKey>", the engine's
// artifact-producing task that must complete before any tile depending on
// inputKey starts. This is the example preprocessing data source named in
// the engine's component list: an OSM fetch has no spatial subdivision of
// its own, so it runs once for the whole area rather than once per tile.
func (ds *OverpassDataSource) PreprocessingTask(inputKey, taskKey string, bounds [4]float64, zoom uint32) config.PreprocessingTask {
	return config.PreprocessingTask{
		InputKey: inputKey,
		TaskKey:  taskKey,
		Run: func(ctx context.Context) (any, error) {
			return ds.FetchArea(ctx, bounds, zoom)
		},
	}
}

// PreprocessingTaskForTile is a convenience wrapper deriving bounds and zoom
// straight from a tile coordinate instead of an explicit bounding box.
func (ds *OverpassDataSource) PreprocessingTaskForTile(inputKey, taskKey string, t tile.Coords) config.PreprocessingTask {
	return ds.PreprocessingTask(inputKey, taskKey, t.Bounds(), t.Z)
}

// NewPreprocessingTaskKey derives a fresh task key for an ad hoc area fetch
// that isn't addressed to a single tile (e.g. a CLI-wide --bounds run), so
// concurrent runs over different areas never collide on the same
// preprocessing task id.
func NewPreprocessingTaskKey() string {
	return uuid.NewString()
}
