package task

import "errors"

// ErrNoData is the no-data sentinel: a tile carries no output to write.
// It is not a failure and must never be logged as one.
var ErrNoData = errors.New("task: no data")

// ErrBothGeometryAndBounds is returned by New when a caller supplies both a
// geometry and bounds instead of exactly one.
var ErrBothGeometryAndBounds = errors.New("task: only one of geometry or bounds may be set")

// ErrMalformedDependencyKey reports a preprocessing dependency key that is
// not of the form "<input_key>:<task_key>", has an empty task key, or
// addresses an input binding the task does not declare.
type ErrMalformedDependencyKey struct {
	Key    string
	Reason string
}

func (e *ErrMalformedDependencyKey) Error() string {
	return "task: malformed dependency key " + e.Key + ": " + e.Reason
}

// CancelledError is the terminal, re-raised error produced when a job is
// cancelled, either by a task/observer raising it or by an external signal.
type CancelledError struct {
	Reason string
}

func (e *CancelledError) Error() string {
	if e.Reason == "" {
		return "task: cancelled"
	}
	return "task: cancelled: " + e.Reason
}

// IsNoData reports whether err is (or wraps) ErrNoData.
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}

// IsCancelled reports whether err is (or wraps) a *CancelledError.
func IsCancelled(err error) bool {
	var c *CancelledError
	return errors.As(err, &c)
}
