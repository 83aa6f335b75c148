// Package observer implements the engine's observer/lifecycle component:
// the composite notification fan-out and the job status state machine. It
// generalizes the teacher's worker.Pool.onProgress single-callback idea to
// an ordered list of Observer implementations.
package observer

import (
	"fmt"

	"github.com/MeKo-Tech/tilepyramid/internal/task"
)

// Event carries any subset of the fields an observer may care about; zero
// values mean "not set for this notification".
type Event struct {
	Status     task.Status
	Progress   *task.Progress
	Message    string
	TaskResult *task.Result
}

// Observer receives non-blocking job notifications. An error returned from
// Notify is fatal to the job.
type Observer interface {
	Notify(e Event) error
}

// Observers fans one event out to every registered observer in
// registration order, stopping at (and returning) the first error.
type Observers struct {
	observers []Observer
}

// NewObservers builds a composite from zero or more observers.
func NewObservers(obs ...Observer) *Observers {
	return &Observers{observers: obs}
}

// Add registers another observer.
func (o *Observers) Add(obs Observer) {
	o.observers = append(o.observers, obs)
}

// Notify calls every registered observer in order; an observer's error
// aborts the fan-out and is returned wrapped with its index.
func (o *Observers) Notify(e Event) error {
	for i, obs := range o.observers {
		if err := obs.Notify(e); err != nil {
			return fmt.Errorf("observer: observer %d: %w", i, err)
		}
	}
	return nil
}

// NotifyStatus is a convenience wrapper for a status-only event.
func (o *Observers) NotifyStatus(s task.Status) error {
	return o.Notify(Event{Status: s})
}

// NotifyProgress is a convenience wrapper for a progress-only event.
func (o *Observers) NotifyProgress(p task.Progress) error {
	return o.Notify(Event{Progress: &p})
}

// NotifyResult is a convenience wrapper for a task-result event.
func (o *Observers) NotifyResult(r *task.Result) error {
	return o.Notify(Event{TaskResult: r})
}
