// Package executor implements the engine's executor abstraction: a scoped
// resource that drains batches of runnable tasks under a selectable
// concurrency backend with bounded in-flight submission, surfacing
// completions as an unordered stream of task.Result.
package executor

import (
	"context"
	"fmt"

	"github.com/MeKo-Tech/tilepyramid/internal/task"
)

// Runnable is anything the executor can submit: both *task.Task and
// *task.TileTask satisfy it via Task.Execute.
type Runnable interface {
	Execute(ctx context.Context) (*task.Result, error)
}

// Concurrency names one of the four backend variants from §4.4.
type Concurrency string

const (
	ConcurrencyNone      Concurrency = "sequential"
	ConcurrencyThreads   Concurrency = "threads"
	ConcurrencyProcesses Concurrency = "processes"
	ConcurrencyDataflow  Concurrency = "dataflow"
)

// Options configures backend selection and bounds.
type Options struct {
	Concurrency       Concurrency
	Workers           int
	MaxSubmittedTasks int
	Chunksize         int

	// DataflowScheduler, when non-empty, auto-selects the dataflow
	// backend regardless of Concurrency, per §4.4's precedence rule.
	DataflowScheduler string

	// StartMethod selects how process-pool workers are started, mirroring
	// Python's fork/spawn/forkserver; only "subprocess" (re-exec the
	// current binary) is implemented.
	StartMethod string

	// WorkerBinary is the path to re-exec for the process backend; empty
	// defaults to os.Args[0].
	WorkerBinary string
}

// Executor is a scoped resource: obtain it from Select before dispatch, Close (which
// drains and releases) on every exit path including cancellation.
type Executor interface {
	// SubmitBatches runs every Runnable in tasks, respecting
	// opts.MaxSubmittedTasks in-flight submissions at a time, and returns
	// an unordered channel of completions. The channel is closed once all
	// submissions have completed or ctx is done.
	SubmitBatches(ctx context.Context, tasks []Runnable) (<-chan *task.Result, error)
	// Close releases backend resources. Safe to call more than once.
	Close() error
}

// Select auto-selects a backend per §4.4's precedence: explicit dataflow
// scheduler/client first, then explicit concurrency choice, then
// single-task/single-worker collapsing to sequential, then the configured
// default.
func Select(opts Options, totalTasks int) (Executor, error) {
	if opts.DataflowScheduler != "" {
		return NewDataflow(opts), nil
	}
	switch opts.Concurrency {
	case ConcurrencyDataflow:
		return NewDataflow(opts), nil
	case ConcurrencyProcesses:
		return NewProcesses(opts)
	case ConcurrencyThreads:
		if totalTasks <= 1 || opts.Workers <= 1 {
			return NewSequential(opts), nil
		}
		return NewThreads(opts), nil
	case ConcurrencyNone, "":
		return NewSequential(opts), nil
	default:
		return nil, fmt.Errorf("executor: unknown concurrency %q", opts.Concurrency)
	}
}

func boundedMaxInFlight(opts Options, n int) int {
	if opts.MaxSubmittedTasks <= 0 {
		return n
	}
	if opts.MaxSubmittedTasks > n {
		return n
	}
	return opts.MaxSubmittedTasks
}
