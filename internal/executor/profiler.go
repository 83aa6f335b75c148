package executor

import (
	"context"
	"time"

	"github.com/MeKo-Tech/tilepyramid/internal/task"
)

// Profiled wraps a Runnable so its executed result carries wall-time
// profiling data, mirroring the teacher's worker.Result.Elapsed field.
type Profiled struct {
	Runnable
}

// Profile wraps rt with wall-time measurement.
func Profile(rt Runnable) Runnable {
	return Profiled{Runnable: rt}
}

func (p Profiled) Execute(ctx context.Context) (*task.Result, error) {
	start := time.Now()
	res, err := p.Runnable.Execute(ctx)
	elapsed := time.Since(start)
	if res != nil {
		if res.Profiling == nil {
			res.Profiling = &task.ProfilingSample{}
		}
		res.Profiling.Elapsed = elapsed
	}
	return res, err
}

// ProfileAll wraps every task in tasks with Profile.
func ProfileAll(tasks []Runnable) []Runnable {
	out := make([]Runnable, len(tasks))
	for i, t := range tasks {
		out[i] = Profile(t)
	}
	return out
}
