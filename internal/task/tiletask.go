package task

import (
	"context"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/tilepyramid/internal/config"
	"github.com/MeKo-Tech/tilepyramid/internal/raster"
	"github.com/MeKo-Tech/tilepyramid/internal/tile"
)

// TileTask is a Task specialized to a tile address of the process pyramid.
// It ports pipeline.Generator.Generate's structure (fetch dependencies →
// produce content → return a result) generalized to fetch-dependencies →
// interpolate-or-process → TaskResult.
type TileTask struct {
	*Task

	Tile   tile.Coords
	Skip   bool
	Job    *config.Job
}

// NewTileTask builds a TileTask addressed at t. The underlying Task's id is
// the deterministic "z{z}_x{x}_y{y}" form and its bounds are derived from
// the tile's geographic extent.
func NewTileTask(t tile.Coords, job *config.Job, skip bool) (*TileTask, error) {
	bounds := t.Bounds()
	bnd := orbBoundFromLonLat(bounds)
	base, err := New(t.String(), KindTile, nil, nil, &bnd)
	if err != nil {
		return nil, err
	}
	tt := &TileTask{Task: base, Tile: t, Skip: skip, Job: job}
	tt.Task.Func = tt.run
	return tt, nil
}

// Execute runs the underlying Task and stamps the completed result with
// this task's tile address, so a result can be identified by tile (S1)
// without unpacking its opaque Output.
func (tt *TileTask) Execute(ctx context.Context) (*Result, error) {
	res, err := tt.Task.Execute(ctx)
	if res != nil {
		t := tt.Tile
		res.Tile = &t
	}
	return res, err
}

// run implements §4.5: skip / out-of-zoom no-data, dependency attachment,
// baselevel interpolation dispatch, or the user process.
func (tt *TileTask) run(ctx context.Context, deps map[string]*Result) (any, error) {
	if tt.Skip {
		return nil, ErrNoData
	}
	if !tt.Job.HasZoom(tt.Tile.Z) {
		return nil, ErrNoData
	}

	if bl := tt.Job.Baselevels; bl != nil {
		minZ, maxZ := bl.MinZoom(), bl.MaxZoom()
		switch {
		case tt.Tile.Z < minZ:
			return tt.interpolateFromChildren(ctx, deps, bl)
		case tt.Tile.Z > maxZ:
			return tt.interpolateFromParent(ctx, bl)
		}
	}

	inputs, err := tt.resolveInputs(deps)
	if err != nil {
		return nil, err
	}

	if tt.Job.Process == nil {
		return nil, fmt.Errorf("task: %s has no user process configured", tt.ID)
	}

	var params map[string]any
	if tt.Job.GetProcessParams != nil {
		params = tt.Job.GetProcessParams(tt.Tile.Z)
	}
	pctx := config.ProcessContext{
		Tile:   tt.Tile,
		Params: params,
		Input:  inputs,
	}
	out, err := tt.Job.Process(ctx, pctx)
	if err != nil {
		if IsNoData(err) {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("task: user process failed for tile %s: %w", tt.Tile, err)
	}
	return out, nil
}

// resolveInputs attaches preprocessing results to the job's per-tile input
// bindings, matching dependency keys of the form "<input_key>:<task_key>"
// against the tile's declared inputs. A malformed key fails the task.
func (tt *TileTask) resolveInputs(deps map[string]*Result) (map[string]any, error) {
	inputs := map[string]any{}
	if tt.Job.GetInputsForTile != nil {
		for k, v := range tt.Job.GetInputsForTile(tt.Tile) {
			inputs[k] = v
		}
	}
	for key, res := range deps {
		idx := strings.Index(key, ":")
		if idx <= 0 || idx == len(key)-1 {
			return nil, &ErrMalformedDependencyKey{Key: key, Reason: "expected <input_key>:<task_key>"}
		}
		inputKey := key[:idx]
		if _, ok := inputs[inputKey]; !ok {
			return nil, &ErrMalformedDependencyKey{Key: key, Reason: "unknown input key " + inputKey}
		}
		inputs[inputKey] = res.Output
	}
	return inputs, nil
}

// interpolateFromChildren generates an overview tile coarser than the
// baseline range by gathering child outputs (preferring the dependency
// results already produced) and resampling a mosaic of them down to this
// tile's resolution, using baselevels.Lower.
func (tt *TileTask) interpolateFromChildren(ctx context.Context, deps map[string]*Result, bl *config.Baselevels) (any, error) {
	children := tt.Tile.Children()
	srcTiles := make(map[tile.Coords]raster.Raster, len(children))

	for _, c := range children {
		if r, ok := rasterFromDependency(deps, c); ok {
			srcTiles[c] = r
			continue
		}
		if tt.Job.OutputReader != nil {
			r, err := tt.Job.OutputReader.Read(ctx, c)
			if err == nil && !r.IsZero() {
				srcTiles[c] = r
			}
		}
	}
	if len(srcTiles) == 0 {
		return nil, ErrNoData
	}

	tileSize := int(tt.Job.OutputPyramid.TileSize)
	mosaic, nodata, err := raster.CreateMosaic(srcTiles, tileSize)
	if err != nil {
		return nil, err
	}
	out := raster.Resample(mosaic, tileSize, tileSize, bl.Lower)
	return raster.Raster{Image: out, NoData: nodata, Tile: tt.Tile}, nil
}

// interpolateFromParent generates a tile finer than the baseline range by
// resampling the parent tile already present in the output reader, using
// baselevels.Higher.
func (tt *TileTask) interpolateFromParent(ctx context.Context, bl *config.Baselevels) (any, error) {
	parent, ok := tt.Tile.Parent()
	if !ok {
		return nil, ErrNoData
	}
	if tt.Job.OutputReader == nil {
		return nil, ErrNoData
	}
	parentRaster, err := tt.Job.OutputReader.Read(ctx, parent)
	if err != nil {
		return nil, fmt.Errorf("task: reading parent tile %s: %w", parent, err)
	}
	if parentRaster.IsZero() {
		return nil, ErrNoData
	}
	tileSize := int(tt.Job.OutputPyramid.TileSize)
	out := raster.Resample(parentRaster.Image, tileSize, tileSize, bl.Higher)
	return raster.Raster{Image: out, NoData: parentRaster.NoData, Tile: tt.Tile}, nil
}

func rasterFromDependency(deps map[string]*Result, c tile.Coords) (raster.Raster, bool) {
	res, ok := deps[c.String()]
	if !ok || res == nil || res.Empty {
		return raster.Raster{}, false
	}
	r, ok := res.Output.(raster.Raster)
	return r, ok
}
