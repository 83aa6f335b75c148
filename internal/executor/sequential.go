package executor

import (
	"context"

	"github.com/MeKo-Tech/tilepyramid/internal/task"
)

// Sequential runs tasks one at a time, in batch order, on a single
// goroutine that SubmitBatches starts; tasks do not run on the caller's
// goroutine. It is the teacher's worker.Pool reduced to a single worker with
// no channel fan-out, used when total tasks == 1 or workers == 1.
type Sequential struct{}

// NewSequential builds the sequential backend. opts is accepted for
// symmetry with the other constructors but carries nothing this backend
// needs.
func NewSequential(_ Options) *Sequential {
	return &Sequential{}
}

func (s *Sequential) SubmitBatches(ctx context.Context, tasks []Runnable) (<-chan *task.Result, error) {
	out := make(chan *task.Result, len(tasks))
	go func() {
		defer close(out)
		for _, t := range tasks {
			select {
			case <-ctx.Done():
				return
			default:
			}
			res, err := t.Execute(ctx)
			if err != nil && res == nil {
				res = &task.Result{Err: err}
			}
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
			if err != nil && !task.IsNoData(err) {
				return
			}
		}
	}()
	return out, nil
}

func (s *Sequential) Close() error { return nil }
