package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/tilepyramid/internal/task"
)

// fakeRunnable adapts a plain func to the Runnable interface for tests.
type fakeRunnable struct {
	fn func(ctx context.Context) (*task.Result, error)
}

func (f fakeRunnable) Execute(ctx context.Context) (*task.Result, error) {
	return f.fn(ctx)
}

func okRunnable(id string) Runnable {
	return fakeRunnable{fn: func(ctx context.Context) (*task.Result, error) {
		return &task.Result{ID: id, Processed: true, Output: id}, nil
	}}
}

func noDataRunnable(id string) Runnable {
	return fakeRunnable{fn: func(ctx context.Context) (*task.Result, error) {
		return nil, task.ErrNoData
	}}
}

func failingRunnable(id string, err error) Runnable {
	return fakeRunnable{fn: func(ctx context.Context) (*task.Result, error) {
		return nil, err
	}}
}

func drain(t *testing.T, ch <-chan *task.Result) []*task.Result {
	t.Helper()
	var out []*task.Result
	for r := range ch {
		out = append(out, r)
	}
	return out
}

func TestSelectSingleTaskCollapsesToSequential(t *testing.T) {
	// A single task collapses to sequential regardless of the requested
	// concurrency, avoiding pool setup for the degenerate case.
	ex, err := Select(Options{Concurrency: ConcurrencyThreads, Workers: 4}, 1)
	require.NoError(t, err)
	_, ok := ex.(*Sequential)
	assert.True(t, ok)
}

func TestSelectDataflowPrecedence(t *testing.T) {
	ex, err := Select(Options{Concurrency: ConcurrencyNone, DataflowScheduler: "tcp://scheduler:8786"}, 10)
	require.NoError(t, err)
	_, ok := ex.(*Dataflow)
	assert.True(t, ok)
}

func TestSelectExplicitConcurrency(t *testing.T) {
	ex, err := Select(Options{Concurrency: ConcurrencyThreads, Workers: 4}, 10)
	require.NoError(t, err)
	_, ok := ex.(*Threads)
	assert.True(t, ok)

	ex, err = Select(Options{Concurrency: ConcurrencyNone}, 10)
	require.NoError(t, err)
	_, ok = ex.(*Sequential)
	assert.True(t, ok)
}

func TestSelectUnknownConcurrency(t *testing.T) {
	_, err := Select(Options{Concurrency: "bogus"}, 10)
	require.Error(t, err)
}

// TestSequentialCompletionsMatchSubmissions covers property 2: the number
// of completions equals the number of submissions when nothing fails.
func TestSequentialCompletionsMatchSubmissions(t *testing.T) {
	seq := NewSequential(Options{})
	tasks := []Runnable{okRunnable("a"), okRunnable("b"), okRunnable("c")}

	ch, err := seq.SubmitBatches(context.Background(), tasks)
	require.NoError(t, err)

	results := drain(t, ch)
	assert.Len(t, results, 3)
}

func TestSequentialStopsAfterRealError(t *testing.T) {
	boom := errors.New("boom")
	tasks := []Runnable{okRunnable("a"), failingRunnable("b", boom), okRunnable("c")}

	seq := NewSequential(Options{})
	ch, err := seq.SubmitBatches(context.Background(), tasks)
	require.NoError(t, err)

	results := drain(t, ch)
	require.Len(t, results, 2)
	assert.Equal(t, boom, results[1].Err)
}

func TestSequentialNoDataDoesNotStopBatch(t *testing.T) {
	tasks := []Runnable{okRunnable("a"), noDataRunnable("b"), okRunnable("c")}

	seq := NewSequential(Options{})
	ch, err := seq.SubmitBatches(context.Background(), tasks)
	require.NoError(t, err)

	results := drain(t, ch)
	require.Len(t, results, 3)
	assert.True(t, task.IsNoData(results[1].Err))
}

func TestThreadsCompletionsMatchSubmissions(t *testing.T) {
	th := NewThreads(Options{Workers: 4})
	tasks := make([]Runnable, 0, 20)
	for i := 0; i < 20; i++ {
		tasks = append(tasks, okRunnable("t"))
	}

	ch, err := th.SubmitBatches(context.Background(), tasks)
	require.NoError(t, err)

	results := drain(t, ch)
	assert.Len(t, results, 20)
}

func TestDataflowCompletionsMatchSubmissionsAcrossChunks(t *testing.T) {
	df := NewDataflow(Options{Chunksize: 3})
	tasks := make([]Runnable, 0, 10)
	for i := 0; i < 10; i++ {
		tasks = append(tasks, okRunnable("t"))
	}

	ch, err := df.SubmitBatches(context.Background(), tasks)
	require.NoError(t, err)

	results := drain(t, ch)
	assert.Len(t, results, 10)
}

// TestProfileRecordsElapsed covers the profiler wrapper's wall-time sample.
func TestProfileRecordsElapsed(t *testing.T) {
	rt := Profile(okRunnable("a"))
	res, err := rt.Execute(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Profiling)
	assert.GreaterOrEqual(t, res.Profiling.Elapsed.Nanoseconds(), int64(0))
}

func TestProfileAllWrapsEveryTask(t *testing.T) {
	tasks := []Runnable{okRunnable("a"), okRunnable("b")}
	wrapped := ProfileAll(tasks)
	require.Len(t, wrapped, 2)

	for _, rt := range wrapped {
		res, err := rt.Execute(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, res.Profiling)
	}
}

// TestSequentialCloseIsIdempotent covers property 7: release exactly once,
// safe to call repeatedly.
func TestSequentialCloseIsIdempotent(t *testing.T) {
	seq := NewSequential(Options{})
	require.NoError(t, seq.Close())
	require.NoError(t, seq.Close())
}

func TestThreadsCloseIsIdempotent(t *testing.T) {
	th := NewThreads(Options{})
	require.NoError(t, th.Close())
	require.NoError(t, th.Close())
}

func TestDataflowCloseIsIdempotent(t *testing.T) {
	df := NewDataflow(Options{})
	require.NoError(t, df.Close())
	require.NoError(t, df.Close())
}
