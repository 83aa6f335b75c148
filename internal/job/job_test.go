package job

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/tilepyramid/internal/config"
	"github.com/MeKo-Tech/tilepyramid/internal/executor"
	"github.com/MeKo-Tech/tilepyramid/internal/observer"
	"github.com/MeKo-Tech/tilepyramid/internal/raster"
	"github.com/MeKo-Tech/tilepyramid/internal/task"
	"github.com/MeKo-Tech/tilepyramid/internal/tile"
)

// collectingObserver records every status and progress event for assertion.
type collectingObserver struct {
	statuses []task.Status
	progress []task.Progress
	results  []*task.Result
}

// tileBounds returns a bounding box strictly inside a single tile (z5/x1/y1)
// so TilesInBBox resolves to exactly that one tile regardless of how corner
// points snap at exact tile boundaries.
func tileBounds() [4]float64 {
	coord := tile.NewCoords(5, 1, 1)
	b := coord.Bounds()
	const epsilon = 1e-6
	width := b[2] - b[0]
	height := b[3] - b[1]
	return [4]float64{
		b[0] + width*0.1 + epsilon,
		b[1] + height*0.1 + epsilon,
		b[2] - width*0.1 - epsilon,
		b[3] - height*0.1 - epsilon,
	}
}

func newObserverRecorder() (*observer.Observers, *collectingObserver) {
	c := &collectingObserver{}
	return observer.NewObservers(recorderAdapter{c}), c
}

// recorderAdapter bridges collectingObserver (test-local) to observer.Observer.
type recorderAdapter struct{ c *collectingObserver }

func (r recorderAdapter) Notify(e observer.Event) error {
	if e.Status != "" {
		r.c.statuses = append(r.c.statuses, e.Status)
	}
	if e.Progress != nil {
		r.c.progress = append(r.c.progress, *e.Progress)
	}
	if e.TaskResult != nil {
		r.c.results = append(r.c.results, e.TaskResult)
	}
	return nil
}

// TestJobRunZeroTasksFastPath covers property 1 / S1's degenerate case: a
// job configured with no area produces no tiles and transitions straight to
// done without touching the executor.
func TestJobRunZeroTasksFastPath(t *testing.T) {
	cfg := &config.Job{
		OutputPyramid: tile.NewPyramid(5, 5),
		ZoomLevels:    []uint32{5},
		Process: func(ctx context.Context, pctx config.ProcessContext) (any, error) {
			t.Fatal("process must not run when there are no tasks")
			return nil, nil
		},
	}
	obs, rec := newObserverRecorder()
	j := New(cfg, obs)

	err := j.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []task.Status{task.StatusParsing, task.StatusInitializing, task.StatusDone}, rec.statuses)
}

// TestJobRunSingleTileNoBaselevels covers S1: a single tile with no
// baselevels configured runs the user process once and completes.
func TestJobRunSingleTileNoBaselevels(t *testing.T) {
	bounds := tileBounds()
	var ran int32
	cfg := &config.Job{
		OutputPyramid: tile.NewPyramid(5, 5),
		ZoomLevels:    []uint32{5},
		Area:          &bounds,
		Process: func(ctx context.Context, pctx config.ProcessContext) (any, error) {
			atomic.AddInt32(&ran, 1)
			return "tile-output", nil
		},
	}
	obs, rec := newObserverRecorder()
	j := New(cfg, obs)

	err := j.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), ran)
	assert.Contains(t, rec.statuses, task.StatusDone)
	require.Len(t, rec.results, 1)
	assert.Equal(t, "tile-output", rec.results[0].Output)
}

// TestJobRunNoDataPropagation covers S6: a tile whose process returns
// ErrNoData is reported to observers as an empty result, not a failure, and
// the job still reaches done.
func TestJobRunNoDataPropagation(t *testing.T) {
	bounds := tileBounds()
	cfg := &config.Job{
		OutputPyramid: tile.NewPyramid(5, 5),
		ZoomLevels:    []uint32{5},
		Area:          &bounds,
		Process: func(ctx context.Context, pctx config.ProcessContext) (any, error) {
			return nil, task.ErrNoData
		},
	}
	obs, rec := newObserverRecorder()
	j := New(cfg, obs)

	err := j.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Contains(t, rec.statuses, task.StatusDone)
	require.Len(t, rec.results, 1)
	assert.True(t, rec.results[0].IsEmpty())
}

// TestJobRunRetryThenSucceed covers S4/property 6: a process that fails once
// then succeeds on retry completes the job, having used exactly one retry.
func TestJobRunRetryThenSucceed(t *testing.T) {
	bounds := tileBounds()
	var attempts int32
	cfg := &config.Job{
		OutputPyramid: tile.NewPyramid(5, 5),
		ZoomLevels:    []uint32{5},
		Area:          &bounds,
		Process: func(ctx context.Context, pctx config.ProcessContext) (any, error) {
			if atomic.AddInt32(&attempts, 1) == 1 {
				return nil, errors.New("transient failure")
			}
			return "ok-on-retry", nil
		},
	}
	obs, rec := newObserverRecorder()
	j := New(cfg, obs)

	err := j.Run(context.Background(), Options{Retries: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts)
	assert.Contains(t, rec.statuses, task.StatusRetrying)
	assert.Contains(t, rec.statuses, task.StatusDone)
}

// TestJobRunFailsWhenRetriesExhausted ensures a persistently failing process
// terminates the job as failed instead of looping forever.
func TestJobRunFailsWhenRetriesExhausted(t *testing.T) {
	bounds := tileBounds()
	persistent := errors.New("always fails")
	cfg := &config.Job{
		OutputPyramid: tile.NewPyramid(5, 5),
		ZoomLevels:    []uint32{5},
		Area:          &bounds,
		Process: func(ctx context.Context, pctx config.ProcessContext) (any, error) {
			return nil, persistent
		},
	}
	obs, rec := newObserverRecorder()
	j := New(cfg, obs)

	err := j.Run(context.Background(), Options{Retries: 1})
	require.Error(t, err)
	assert.Contains(t, rec.statuses, task.StatusFailed)
	assert.NotContains(t, rec.statuses, task.StatusDone)
}

// TestJobRunCancellation covers S5/property 5: a task raising the engine's
// cancellation error stops the job immediately and reports cancelled.
func TestJobRunCancellation(t *testing.T) {
	bounds := tileBounds()
	cfg := &config.Job{
		OutputPyramid: tile.NewPyramid(5, 5),
		ZoomLevels:    []uint32{5},
		Area:          &bounds,
		Process: func(ctx context.Context, pctx config.ProcessContext) (any, error) {
			return nil, &task.CancelledError{Reason: "user abort"}
		},
	}
	obs, rec := newObserverRecorder()
	j := New(cfg, obs)

	err := j.Run(context.Background(), Options{Retries: 3})
	require.Error(t, err)
	assert.True(t, task.IsCancelled(err))
	assert.Contains(t, rec.statuses, task.StatusCancelled)
	assert.NotContains(t, rec.statuses, task.StatusRetrying)
}

var _ executor.Runnable = (*task.TileTask)(nil)

// TestJobRunBelowBaselineResolvesAgainstBaselineNotAboveChain covers §4.1's
// emission order (baseline, then above ascending, then below descending)
// against the resolver: the first below-baseline batch must depend on the
// baseline batch's results (its true zoom+1 predecessor), not on whatever
// above-baseline batch happened to run immediately before it in emission
// order. OutputReader is left nil so interpolation can only succeed through
// correctly wired dependencies, not by falling back to a shared store.
func TestJobRunBelowBaselineResolvesAgainstBaselineNotAboveChain(t *testing.T) {
	bounds := tileBounds()
	pyramid := tile.NewPyramid(4, 6)
	cfg := &config.Job{
		OutputPyramid: pyramid,
		ZoomLevels:    []uint32{4, 5, 6},
		Area:          &bounds,
		Baselevels: &config.Baselevels{
			Zooms: map[uint32]bool{5: true},
			Lower: raster.ResampleNearest,
		},
		Process: func(ctx context.Context, pctx config.ProcessContext) (any, error) {
			if pctx.Tile.Z != 5 {
				t.Fatalf("user process should only run at the baseline zoom, got z%d", pctx.Tile.Z)
			}
			img := image.NewNRGBA(image.Rect(0, 0, int(pyramid.TileSize), int(pyramid.TileSize)))
			return raster.Raster{Image: img, NoData: -1, Tile: pctx.Tile}, nil
		},
	}
	obs, rec := newObserverRecorder()
	j := New(cfg, obs)

	err := j.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Contains(t, rec.statuses, task.StatusDone)

	var belowResult *task.Result
	for _, r := range rec.results {
		if r.Tile != nil && r.Tile.Z == 4 {
			belowResult = r
		}
	}
	require.NotNil(t, belowResult, "expected a result for the below-baseline zoom 4 tile")
	assert.False(t, belowResult.IsEmpty(), "zoom 4 tile should have interpolated from zoom 5 results, not come up empty")
}
