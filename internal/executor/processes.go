package executor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/MeKo-Tech/tilepyramid/internal/task"
)

// workerProc is one subprocess worker: the re-exec'd binary running in
// hidden worker mode, talking newline-delimited JSON over its stdin/stdout.
type workerProc struct {
	cmd    *exec.Cmd
	stdin  *json.Encoder
	stdout *bufio.Scanner
	mu     sync.Mutex
}

func startWorkerProc(ctx context.Context, binary string) (*workerProc, error) {
	if binary == "" {
		binary = os.Args[0]
	}
	cmd := exec.CommandContext(ctx, binary, "--internal-worker")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("executor: starting worker subprocess: %w", err)
	}
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &workerProc{cmd: cmd, stdin: json.NewEncoder(stdin), stdout: sc}, nil
}

func (w *workerProc) call(req wireRequest) (wireResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.stdin.Encode(req); err != nil {
		return wireResponse{}, err
	}
	if !w.stdout.Scan() {
		if err := w.stdout.Err(); err != nil {
			return wireResponse{}, err
		}
		return wireResponse{}, io.ErrUnexpectedEOF
	}
	var resp wireResponse
	if err := json.Unmarshal(w.stdout.Bytes(), &resp); err != nil {
		return wireResponse{}, err
	}
	return resp, nil
}

func (w *workerProc) close() error {
	_ = w.cmd.Process.Kill()
	return w.cmd.Wait()
}

// Processes is a fixed pool of worker processes. Serializable tasks are
// dispatched to a subprocess by registry name and JSON payload; tasks that
// don't implement Serializable (the common case for in-test closures) run
// in-process in the parent, each on its own goroutine, instead of failing
// the job outright,
// since per-task serialization is the user process author's opt-in, not a
// hard engine requirement.
type Processes struct {
	opts    Options
	workers []*workerProc
}

// NewProcesses starts opts.Workers worker subprocesses (default 4).
func NewProcesses(opts Options) (*Processes, error) {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	p := &Processes{opts: opts}
	for i := 0; i < opts.Workers; i++ {
		w, err := startWorkerProc(context.Background(), opts.WorkerBinary)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.workers = append(p.workers, w)
	}
	return p, nil
}

func (p *Processes) SubmitBatches(ctx context.Context, tasks []Runnable) (<-chan *task.Result, error) {
	out := make(chan *task.Result, len(tasks))
	maxInFlight := boundedMaxInFlight(p.opts, len(tasks))
	sem := make(chan struct{}, maxInFlight)

	go func() {
		defer close(out)
		var wg sync.WaitGroup
		var nextWorker int
		var mu sync.Mutex

		for _, rt := range tasks {
			rt := rt
			select {
			case <-ctx.Done():
				wg.Wait()
				return
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				var res *task.Result
				var err error
				if s, ok := rt.(Serializable); ok {
					mu.Lock()
					w := p.workers[nextWorker%len(p.workers)]
					nextWorker++
					mu.Unlock()
					res, err = p.dispatch(ctx, w, s)
				} else {
					res, err = rt.Execute(ctx)
				}
				if err != nil && res == nil {
					res = &task.Result{Err: err}
				}
				select {
				case out <- res:
				case <-ctx.Done():
				}
			}()
		}
		wg.Wait()
	}()

	return out, nil
}

func (p *Processes) dispatch(_ context.Context, w *workerProc, s Serializable) (*task.Result, error) {
	payload, err := s.Payload()
	if err != nil {
		return nil, err
	}
	resp, err := w.call(wireRequest{ID: s.TaskID(), Name: s.RegistryName(), Args: payload})
	if err != nil {
		return nil, fmt.Errorf("executor: process worker call failed: %w", err)
	}
	if resp.Err != "" {
		if resp.Err == task.ErrNoData.Error() {
			return &task.Result{ID: s.TaskID(), Processed: true, Empty: true}, nil
		}
		return nil, fmt.Errorf("executor: process task %s failed: %s", s.TaskID(), resp.Err)
	}
	var output any
	if len(resp.Output) > 0 {
		if err := json.Unmarshal(resp.Output, &output); err != nil {
			return nil, err
		}
	}
	return &task.Result{ID: s.TaskID(), Output: output, Processed: true}, nil
}

func (p *Processes) Close() error {
	var firstErr error
	for _, w := range p.workers {
		if err := w.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.workers = nil
	return firstErr
}
