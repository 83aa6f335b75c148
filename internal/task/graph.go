package task

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/MeKo-Tech/tilepyramid/internal/config"
)

// ZoomBatch pairs an ordered TileTaskBatch with the direction its
// dependencies must be resolved in relative to the batch drained just
// before it.
type ZoomBatch struct {
	Batch     *TileTaskBatch
	Direction Direction
}

// Tasks is the graph builder's output: a lazy, one-shot materialized
// sequence of a single preprocessing batch followed by ordered tile
// batches. Grounded on mapchete's Tasks.materialize(), which drains its
// generator once and is read-only afterward.
type Tasks struct {
	job *config.Job

	once               sync.Once
	preprocessingBatch *TaskBatch
	zoomBatches        []ZoomBatch
	err                error
}

// NewTasks returns an unmaterialized graph for job. Call Materialize to
// build it; calling it more than once is a programming error and returns
// the first materialization's result without rebuilding.
func NewTasks(job *config.Job) *Tasks {
	return &Tasks{job: job}
}

// Materialize builds the preprocessing batch and the ordered tile batches
// exactly once, per §4.1's batch-order rules.
func (g *Tasks) Materialize() error {
	g.once.Do(func() {
		g.preprocessingBatch, g.err = buildPreprocessingBatch(g.job)
		if g.err != nil {
			return
		}
		g.zoomBatches, g.err = buildZoomBatches(g.job)
	})
	return g.err
}

// PreprocessingBatch returns the single preprocessing batch; call
// Materialize first.
func (g *Tasks) PreprocessingBatch() *TaskBatch {
	return g.preprocessingBatch
}

// ZoomBatches returns the ordered tile batches; call Materialize first.
func (g *Tasks) ZoomBatches() []ZoomBatch {
	return g.zoomBatches
}

func buildPreprocessingBatch(job *config.Job) (*TaskBatch, error) {
	tasks := make([]*Task, 0, len(job.PreprocessingTasks))
	for _, pt := range job.PreprocessingTasks {
		t, err := New(pt.ID(), KindPreprocessing, preprocessingFunc(pt), nil, nil)
		if err != nil {
			return nil, fmt.Errorf("task: preprocessing task %s: %w", pt.ID(), err)
		}
		tasks = append(tasks, t)
	}
	return &TaskBatch{ID: "preprocessing_tasks", Tasks: tasks}, nil
}

func preprocessingFunc(pt config.PreprocessingTask) Func {
	return func(ctx context.Context, _ map[string]*Result) (any, error) {
		return pt.Run(ctx)
	}
}

// buildZoomBatches orders zoom levels per §4.1: baseline zooms first (any
// order — ascending here for determinism), then zooms above the highest
// baseline ascending, then zooms below the lowest baseline descending. With
// no baselevels configured, all zooms run ascending and depend on nothing.
func buildZoomBatches(job *config.Job) ([]ZoomBatch, error) {
	zooms := append([]uint32(nil), job.ZoomLevels...)
	sort.Slice(zooms, func(i, j int) bool { return zooms[i] < zooms[j] })

	order, directions := zoomOrder(zooms, job.Baselevels)

	batches := make([]ZoomBatch, 0, len(order))
	for i, z := range order {
		tasks, err := buildTileTasksForZoom(job, z)
		if err != nil {
			return nil, err
		}
		b, err := NewTileTaskBatch(fmt.Sprintf("zoom_%d", z), z, tasks)
		if err != nil {
			return nil, err
		}
		batches = append(batches, ZoomBatch{Batch: b, Direction: directions[i]})
	}
	return batches, nil
}

func buildTileTasksForZoom(job *config.Job, z uint32) ([]*TileTask, error) {
	coords := job.TilesForZoom(z)
	tasks := make([]*TileTask, 0, len(coords))
	for _, c := range coords {
		t, err := NewTileTask(c, job, false)
		if err != nil {
			return nil, fmt.Errorf("task: building tile task %s: %w", c, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// zoomOrder computes the emission order and, for each position, the
// direction its dependencies should be resolved in against the batch
// emitted immediately before it.
func zoomOrder(zooms []uint32, bl *config.Baselevels) ([]uint32, []Direction) {
	if bl == nil || len(bl.Zooms) == 0 {
		directions := make([]Direction, len(zooms))
		for i := range directions {
			if i > 0 {
				directions[i] = DirectionNone
			}
		}
		return zooms, directions
	}

	minB, maxB := bl.MinZoom(), bl.MaxZoom()

	var baseline, above, below []uint32
	for _, z := range zooms {
		switch {
		case z >= minB && z <= maxB:
			baseline = append(baseline, z)
		case z > maxB:
			above = append(above, z)
		default:
			below = append(below, z)
		}
	}
	sort.Slice(above, func(i, j int) bool { return above[i] < above[j] })
	sort.Slice(below, func(i, j int) bool { return below[i] > below[j] })

	order := make([]uint32, 0, len(zooms))
	directions := make([]Direction, 0, len(zooms))

	for range baseline {
		directions = append(directions, DirectionNone)
	}
	order = append(order, baseline...)

	for range above {
		directions = append(directions, DirectionParent)
	}
	order = append(order, above...)

	for range below {
		directions = append(directions, DirectionChildren)
	}
	order = append(order, below...)

	return order, directions
}
