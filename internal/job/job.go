// Package job implements the top-level job orchestration: the retry loop,
// executor acquisition, and the drive-the-graph loop that feeds each batch
// to the executor and fans results out to observers. Grounded on
// mapchete/commands/_execute.py's execute() function.
package job

import (
	"context"
	"fmt"

	"github.com/MeKo-Tech/tilepyramid/internal/config"
	"github.com/MeKo-Tech/tilepyramid/internal/executor"
	"github.com/MeKo-Tech/tilepyramid/internal/observer"
	"github.com/MeKo-Tech/tilepyramid/internal/task"
)

// Options configures one job run: retry budget, executor backend
// selection, and the exception classifiers that parameterize the
// lifecycle's retry/cancel decisions.
type Options struct {
	Retries  int
	Executor executor.Options
	RetryOn  observer.ExceptionClassifier
	CancelOn observer.ExceptionClassifier
}

// Job binds a validated configuration to the observers that will receive
// its lifecycle and progress notifications.
type Job struct {
	Config    *config.Job
	Observers *observer.Observers
}

// New builds a Job.
func New(cfg *config.Job, obs *observer.Observers) *Job {
	if obs == nil {
		obs = observer.NewObservers()
	}
	return &Job{Config: cfg, Observers: obs}
}

// Run executes the job end to end, including the retry loop: parsing ->
// initializing -> running -> post_processing -> done, or any of
// failed/retrying/cancelled per §4.6.
func (j *Job) Run(ctx context.Context, opts Options) error {
	lc := observer.NewLifecycle(j.Observers, opts.Retries, opts.RetryOn, opts.CancelOn)

	if err := lc.Transition(task.StatusParsing); err != nil {
		return err
	}

	for {
		if err := lc.Transition(task.StatusInitializing); err != nil {
			return err
		}

		graph := task.NewTasks(j.Config)
		if err := graph.Materialize(); err != nil {
			return j.terminal(lc, fmt.Errorf("job: materializing task graph: %w", err))
		}

		total := countTotal(graph)
		if total == 0 {
			return lc.Transition(task.StatusDone)
		}

		exec, err := executor.Select(opts.Executor, total)
		if err != nil {
			return j.terminal(lc, err)
		}

		if err := lc.Transition(task.StatusRunning); err != nil {
			exec.Close()
			return err
		}

		runErr := j.runGraph(ctx, graph, exec, lc, total)
		closeErr := exec.Close()
		if runErr == nil {
			runErr = closeErr
		}

		if runErr == nil {
			if err := lc.Transition(task.StatusPostProcessing); err != nil {
				return err
			}
			return lc.Transition(task.StatusDone)
		}

		switch lc.Classify(runErr) {
		case observer.OutcomeCancel:
			return lc.Cancel(runErr.Error())
		case observer.OutcomeRetry:
			if err := lc.Transition(task.StatusFailed); err != nil {
				return err
			}
			if err := lc.Transition(task.StatusRetrying); err != nil {
				return err
			}
			continue
		default:
			return j.terminal(lc, runErr)
		}
	}
}

func (j *Job) terminal(lc *observer.Lifecycle, err error) error {
	if tErr := lc.Transition(task.StatusFailed); tErr != nil {
		return tErr
	}
	return err
}

func countTotal(graph *task.Tasks) int {
	total := len(graph.PreprocessingBatch().Tasks)
	for _, zb := range graph.ZoomBatches() {
		total += len(zb.Batch.Tasks)
	}
	return total
}

// runGraph drains the preprocessing batch, then each tile batch in order,
// resolving dependencies against the batch immediately before it and
// reporting progress/results to observers as completions arrive.
//
// §4.1's emission order is baseline zooms, then the above-baseline chain
// ascending, then the below-baseline chain descending: a single linear
// "previous batch" pointer tracks the above chain correctly (each batch's
// true zoom-1 predecessor is whatever ran immediately before it), but it
// does not track the below chain's first batch correctly, since by the
// time the below chain starts, that pointer holds the finest above-chain
// batch rather than the coarsest baseline batch the below chain actually
// needs (its zoom+1 predecessor). We therefore remember the first
// (lowest-zoom) baseline batch separately and splice it back in exactly
// once, at the above-to-below handoff.
func (j *Job) runGraph(ctx context.Context, graph *task.Tasks, exec executor.Executor, lc *observer.Lifecycle, total int) error {
	progress := task.Progress{Total: total}

	preResults, err := j.drain(ctx, exec, toRunnables(graph.PreprocessingBatch().Tasks), &progress)
	if err != nil {
		return err
	}

	var previous *task.TileTaskBatch
	var previousResults map[string]*task.Result
	var prevDirection task.Direction
	var lowestBaseline *task.TileTaskBatch
	var lowestBaselineResults map[string]*task.Result

	for i, zb := range graph.ZoomBatches() {
		switch zb.Direction {
		case task.DirectionNone:
			task.ResolvePreprocessingDependencies(zb.Batch, graph.PreprocessingBatch(), preResults)
		case task.DirectionChildren:
			if i > 0 && prevDirection != task.DirectionChildren && lowestBaseline != nil {
				previous, previousResults = lowestBaseline, lowestBaselineResults
			}
			task.ResolveTileDependencies(zb.Batch, previous, zb.Direction, previousResults)
		default:
			task.ResolveTileDependencies(zb.Batch, previous, zb.Direction, previousResults)
		}

		runnables := toTileRunnables(zb.Batch.Tasks)
		results, err := j.drain(ctx, exec, runnables, &progress)
		if err != nil {
			return err
		}

		if zb.Direction == task.DirectionNone && lowestBaseline == nil {
			lowestBaseline, lowestBaselineResults = zb.Batch, results
		}

		previous = zb.Batch
		previousResults = results
		prevDirection = zb.Direction
	}

	return nil
}

// drain submits tasks to exec and consumes every completion, notifying
// observers as they arrive, before returning a map of id -> result for
// downstream dependency resolution. The first non-no-data task error is
// remembered and returned once the completion channel closes.
func (j *Job) drain(ctx context.Context, exec executor.Executor, tasks []executor.Runnable, progress *task.Progress) (map[string]*task.Result, error) {
	results := make(map[string]*task.Result, len(tasks))
	if len(tasks) == 0 {
		return results, nil
	}

	completions, err := exec.SubmitBatches(ctx, tasks)
	if err != nil {
		return nil, err
	}

	var firstErr error
	for res := range completions {
		if res == nil {
			continue
		}
		if res.ID != "" {
			results[res.ID] = res
		}
		if res.Err != nil && !task.IsNoData(res.Err) && firstErr == nil {
			firstErr = res.Err
		}
		progress.Current++
		if err := j.Observers.NotifyResult(res); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := j.Observers.NotifyProgress(*progress); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return results, firstErr
}

func toRunnables(tasks []*task.Task) []executor.Runnable {
	out := make([]executor.Runnable, len(tasks))
	for i, t := range tasks {
		out[i] = t
	}
	return out
}

func toTileRunnables(tasks []*task.TileTask) []executor.Runnable {
	out := make([]executor.Runnable, len(tasks))
	for i, t := range tasks {
		out[i] = t
	}
	return out
}
