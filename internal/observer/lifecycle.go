package observer

import (
	"fmt"
	"sync"

	"github.com/MeKo-Tech/tilepyramid/internal/task"
)

// transitions enumerates the allowed predecessor states for each status,
// mirroring the ASCII diagram in the engine's design: parsing ->
// initializing -> running -> post_processing -> done, with failed/retrying
// looping back to initializing and any state falling through to
// cancelled/failed.
var transitions = map[task.Status][]task.Status{
	task.StatusParsing:       nil, // entry state
	task.StatusInitializing:  {task.StatusParsing, task.StatusRetrying},
	task.StatusRunning:       {task.StatusInitializing},
	task.StatusPostProcessing: {task.StatusRunning},
	task.StatusDone:          {task.StatusPostProcessing, task.StatusInitializing}, // early-exit when total_tasks == 0
	task.StatusRetrying:      {task.StatusFailed},
	task.StatusFailed:        nil, // reachable from any state
	task.StatusCancelled:     nil, // reachable from any state, terminal
}

// ExceptionClassifier decides whether an error belongs to a class of
// outcomes (retry-eligible, cancel-eligible).
type ExceptionClassifier func(err error) bool

// DefaultCancelOn matches the engine's dedicated cancellation error.
func DefaultCancelOn(err error) bool {
	return task.IsCancelled(err)
}

// DefaultRetryOn matches every error that isn't cancellation-eligible.
func DefaultRetryOn(err error) bool {
	return err != nil && !task.IsCancelled(err)
}

// Outcome is what the lifecycle decided to do after classifying an error.
type Outcome int

const (
	OutcomeFail Outcome = iota
	OutcomeRetry
	OutcomeCancel
)

// Lifecycle drives the job status state machine: it validates transitions,
// fans them out to Observers, and classifies task/observer errors into
// retry, cancel, or terminal-fail outcomes.
type Lifecycle struct {
	observers *Observers
	retryOn   ExceptionClassifier
	cancelOn  ExceptionClassifier

	mu             sync.Mutex
	status         task.Status
	retriesAllowed int
	retriesUsed    int
	cancelled      bool
}

// NewLifecycle constructs a Lifecycle. A nil retryOn/cancelOn falls back to
// the defaults described in §4.6.
func NewLifecycle(observers *Observers, retries int, retryOn, cancelOn ExceptionClassifier) *Lifecycle {
	if retryOn == nil {
		retryOn = DefaultRetryOn
	}
	if cancelOn == nil {
		cancelOn = DefaultCancelOn
	}
	return &Lifecycle{
		observers:      observers,
		retryOn:        retryOn,
		cancelOn:       cancelOn,
		retriesAllowed: retries,
	}
}

// Status returns the current status.
func (l *Lifecycle) Status() task.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// RetriesUsed returns how many retrying transitions have occurred so far.
func (l *Lifecycle) RetriesUsed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.retriesUsed
}

// Transition validates that `to` is reachable from the current status,
// updates it, and notifies observers. failed and cancelled are reachable
// from any non-terminal state.
func (l *Lifecycle) Transition(to task.Status) error {
	l.mu.Lock()
	from := l.status
	if to != task.StatusFailed && to != task.StatusCancelled {
		allowed := transitions[to]
		if from != "" {
			ok := false
			for _, a := range allowed {
				if a == from {
					ok = true
					break
				}
			}
			if !ok && len(allowed) > 0 {
				l.mu.Unlock()
				return fmt.Errorf("observer: invalid transition %s -> %s", from, to)
			}
		}
	}
	if to == task.StatusRetrying {
		l.retriesUsed++
	}
	l.status = to
	l.mu.Unlock()

	return l.observers.NotifyStatus(to)
}

// Cancel marks the lifecycle cancelled exactly once; repeated calls do not
// transition again and return a CancelledError carrying the reason passed
// to that call, matching property 5 (cancellation idempotence).
func (l *Lifecycle) Cancel(reason string) error {
	l.mu.Lock()
	if l.cancelled {
		l.mu.Unlock()
		return &task.CancelledError{Reason: reason}
	}
	l.cancelled = true
	l.mu.Unlock()

	if err := l.Transition(task.StatusCancelled); err != nil {
		return err
	}
	return &task.CancelledError{Reason: reason}
}

// Classify decides what the job should do in response to err: cancel
// (terminal), retry (if budget remains), or fail (terminal, no budget
// left or no classifier matched retry).
func (l *Lifecycle) Classify(err error) Outcome {
	if err == nil {
		return OutcomeFail
	}
	if l.cancelOn(err) {
		return OutcomeCancel
	}
	if l.retryOn(err) {
		l.mu.Lock()
		remaining := l.retriesAllowed - l.retriesUsed
		l.mu.Unlock()
		if remaining > 0 {
			return OutcomeRetry
		}
	}
	return OutcomeFail
}
