package executor

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/MeKo-Tech/tilepyramid/internal/task"
)

// Threads is a fixed goroutine pool backend, built on
// github.com/sourcegraph/conc/pool instead of hand-rolled
// sync.WaitGroup/channel plumbing — the teacher's worker.Pool did the
// latter; conc gives the same fan-out/fan-in with panic-safety for free.
type Threads struct {
	opts Options
}

// NewThreads builds the threads backend with opts.Workers worker
// goroutines, defaulting to 4 when unset.
func NewThreads(opts Options) *Threads {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Threads{opts: opts}
}

func (t *Threads) SubmitBatches(ctx context.Context, tasks []Runnable) (<-chan *task.Result, error) {
	out := make(chan *task.Result, len(tasks))
	maxInFlight := boundedMaxInFlight(t.opts, len(tasks))

	go func() {
		defer close(out)

		goroutines := maxInFlight
		if t.opts.Workers < goroutines {
			goroutines = t.opts.Workers
		}
		p := pool.New().WithMaxGoroutines(goroutines)
		var aborted sync.Once
		abort := make(chan struct{})

		for _, rt := range tasks {
			rt := rt
			select {
			case <-ctx.Done():
				p.Wait()
				return
			case <-abort:
				p.Wait()
				return
			default:
			}
			p.Go(func() {
				select {
				case <-abort:
					return
				default:
				}
				res, err := rt.Execute(ctx)
				if err != nil && res == nil {
					res = &task.Result{Err: err}
				}
				select {
				case out <- res:
				case <-ctx.Done():
					return
				}
				if err != nil && !task.IsNoData(err) {
					aborted.Do(func() { close(abort) })
				}
			})
		}
		p.Wait()
	}()

	return out, nil
}

func (t *Threads) Close() error { return nil }
