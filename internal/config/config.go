// Package config defines the already-validated job configuration contract
// the engine consumes. Parsing configuration files is out of scope; callers
// construct a Job value directly or via a thin adapter of their own.
package config

import (
	"context"

	"github.com/MeKo-Tech/tilepyramid/internal/raster"
	"github.com/MeKo-Tech/tilepyramid/internal/tile"
)

// Mode selects how the job treats existing output.
type Mode string

const (
	ModeReadOnly  Mode = "readonly"
	ModeContinue  Mode = "continue"
	ModeOverwrite Mode = "overwrite"
	ModeMemory    Mode = "memory"
)

// Baselevels names the zoom levels that hold source-of-truth data and the
// resampling methods used to derive tiles outside that range. Lower is used
// when generating a tile coarser than the baseline range (aggregating the
// finer children already produced); Higher is used when generating a tile
// finer than the baseline range (resampling from the coarser parent).
//
// This assignment is the opposite of a literal reading of a parent/child
// naming scheme, but it is the only one under which the graph builder's own
// emission order (§4.1: below-baseline zooms descending, above-baseline
// zooms ascending) actually has its dependency available when a batch
// starts; see DESIGN.md.
type Baselevels struct {
	Zooms  map[uint32]bool
	Higher raster.ResampleMethod
	Lower  raster.ResampleMethod
	Pyramid tile.Pyramid
}

func (b *Baselevels) MinZoom() uint32 {
	return minKey(b.Zooms)
}

func (b *Baselevels) MaxZoom() uint32 {
	return maxKey(b.Zooms)
}

func minKey(m map[uint32]bool) uint32 {
	var min uint32 = ^uint32(0)
	for k := range m {
		if k < min {
			min = k
		}
	}
	return min
}

func maxKey(m map[uint32]bool) uint32 {
	var max uint32
	for k := range m {
		if k > max {
			max = k
		}
	}
	return max
}

// OutputReader reads previously written tiles, used both for baselevel
// interpolation and for "continue" mode to detect already-processed tiles.
type OutputReader interface {
	Read(ctx context.Context, t tile.Coords) (raster.Raster, error)
	Pyramid() tile.Pyramid
	NoData() float64
}

// ProcessContext is passed to the user process callable for a tile task.
type ProcessContext struct {
	Tile         tile.Coords
	Params       map[string]any
	Input        map[string]any
	OutputParams map[string]any
}

// ProcessFunc is the user-supplied callable that produces tile output. It
// must return raster.Raster (or any opaque output type) or an error;
// returning the engine's no-data sentinel signals an empty outcome.
type ProcessFunc func(ctx context.Context, pctx ProcessContext) (any, error)

// PreprocessingTask describes one artifact-producing task that must
// complete before tiling starts, keyed "<input_key>:<task_key>".
type PreprocessingTask struct {
	InputKey string
	TaskKey  string
	Run      func(ctx context.Context) (any, error)
}

func (p PreprocessingTask) ID() string {
	return p.InputKey + ":" + p.TaskKey
}

// Job is the validated configuration the engine consumes.
type Job struct {
	ProcessPyramid tile.Pyramid
	OutputPyramid  tile.Pyramid
	ZoomLevels     []uint32
	Baselevels     *Baselevels
	Mode           Mode

	PreprocessingTasks []PreprocessingTask

	OutputReader OutputReader
	Process      ProcessFunc

	// Area restricts tiling to tiles intersecting this bounding box; a nil
	// value yields no tile tasks at any zoom.
	Area *[4]float64

	// GetInputsForTile resolves input bindings for a tile; a nil function
	// means the job has no per-tile inputs beyond preprocessing results.
	GetInputsForTile func(t tile.Coords) map[string]any

	// GetProcessParams resolves user process keyword parameters for a zoom.
	GetProcessParams func(zoom uint32) map[string]any
}

// HasZoom reports whether z is one of the job's configured zoom levels.
func (j *Job) HasZoom(z uint32) bool {
	for _, zl := range j.ZoomLevels {
		if zl == z {
			return true
		}
	}
	return false
}

// TilesForZoom enumerates the tiles intersecting Area at zoom z; it returns
// nil when Area is nil.
func (j *Job) TilesForZoom(z uint32) []tile.Coords {
	if j.Area == nil {
		return nil
	}
	return tile.TilesInBBox(*j.Area, int(z), int(z))
}

// PreprocessingTasksCount returns the number of configured preprocessing
// tasks.
func (j *Job) PreprocessingTasksCount() int {
	return len(j.PreprocessingTasks)
}

// CountTiles returns the total number of tile tasks across all configured
// zoom levels.
func (j *Job) CountTiles() int {
	if j.Area == nil {
		return 0
	}
	return tile.TileCount(*j.Area, int(j.ZoomLevels[0]), int(j.ZoomLevels[len(j.ZoomLevels)-1]))
}
