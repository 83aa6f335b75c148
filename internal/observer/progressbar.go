package observer

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/tilepyramid/internal/task"
)

// ProgressBar renders job progress as a console bar, grounded on the
// teacher's tile-generation progress tracker, generalized here from a
// single Pool.Config.OnProgress callback to an Observer the job notifies
// directly.
type ProgressBar struct {
	mu        sync.RWMutex
	output    io.Writer
	startTime time.Time
	started   bool
	total     int
	completed int
	failed    int
	enabled   bool
}

// NewProgressBar builds a progress bar writing to stderr. enabled controls
// whether it actually prints (a quiet run still tracks completion counts).
func NewProgressBar(enabled bool) *ProgressBar {
	return &ProgressBar{output: os.Stderr, enabled: enabled}
}

func (p *ProgressBar) Notify(e Event) error {
	switch {
	case e.Progress != nil:
		p.update(*e.Progress, e.TaskResult)
	case e.TaskResult != nil:
		if e.TaskResult.Err != nil && !task.IsNoData(e.TaskResult.Err) {
			p.mu.Lock()
			p.failed++
			p.mu.Unlock()
		}
	case e.Status == task.StatusDone || e.Status == task.StatusFailed || e.Status == task.StatusCancelled:
		p.done()
	}
	return nil
}

func (p *ProgressBar) update(progress task.Progress, result *task.Result) {
	p.mu.Lock()
	if !p.started {
		p.startTime = time.Now()
		p.started = true
	}
	p.completed = progress.Current
	p.total = progress.Total
	if result != nil && result.Err != nil && !task.IsNoData(result.Err) {
		p.failed++
	}
	p.mu.Unlock()

	if p.enabled {
		p.print()
	}
}

func (p *ProgressBar) print() {
	p.mu.RLock()
	completed, total, failed, startTime := p.completed, p.total, p.failed, p.startTime
	p.mu.RUnlock()

	if total == 0 {
		return
	}
	elapsed := time.Since(startTime)

	var rate float64
	var eta time.Duration
	if completed > 0 {
		rate = float64(completed) / elapsed.Seconds()
		remaining := total - completed
		if rate > 0 {
			eta = time.Duration(float64(remaining)/rate) * time.Second
		}
	}

	const barWidth = 30
	frac := float64(completed) / float64(total)
	filled := int(frac * float64(barWidth))
	bar := strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled)

	line := fmt.Sprintf("\r[%s] %d/%d tiles", bar, completed, total)
	if failed > 0 {
		line += fmt.Sprintf(" (%d failed)", failed)
	}
	line += fmt.Sprintf(" - %.1f tiles/sec", rate)
	if eta > 0 && completed < total {
		line += fmt.Sprintf(" - ETA: %s", formatDuration(eta))
	}
	if completed >= total {
		line += fmt.Sprintf(" - done in %s", formatDuration(elapsed))
	}
	line += "          "

	fmt.Fprint(p.output, line)
}

// done prints a final newline so the next log line doesn't land on the bar.
func (p *ProgressBar) done() {
	if !p.enabled {
		return
	}
	p.print()
	fmt.Fprintln(p.output)
}

// Summary returns a one-line recap of the run, suitable for printing after
// the job finishes regardless of whether the bar itself was enabled.
func (p *ProgressBar) Summary() string {
	p.mu.RLock()
	completed, total, failed, startTime := p.completed, p.total, p.failed, p.startTime
	p.mu.RUnlock()

	elapsed := time.Since(startTime)
	successful := completed - failed
	var rate float64
	if elapsed.Seconds() > 0 {
		rate = float64(completed) / elapsed.Seconds()
	}
	return fmt.Sprintf("processed %d/%d tiles (%d failed) in %s (%.1f tiles/sec)",
		successful, total, failed, formatDuration(elapsed), rate)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", hours, mins)
}
