// Package task implements the engine's task-graph primitives: the Task and
// TileTask value objects, the batches that group them by zoom, the lazy
// one-shot graph builder, and the dependency resolver that wires
// preprocessing results into tile tasks. It is grounded on mapchete's
// processing/tasks.py, translated from dynamically-typed Python objects
// into Go value types with an explicit error return in place of exceptions.
package task

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
)

// Kind distinguishes a preprocessing task (runs once, before tiling starts)
// from a tile task (addressed to a zoom/row/column).
type Kind string

const (
	KindPreprocessing Kind = "preprocessing"
	KindTile          Kind = "tile"
)

// Func is the callable a Task wraps. It receives the dependencies resolved
// for this task and returns an opaque output or an error; returning
// ErrNoData signals the distinguished no-data outcome rather than failure.
type Func func(ctx context.Context, deps map[string]*Result) (any, error)

// Task is a unit of work together with its spatial extent and upstream
// dependencies. Exactly one of Geometry or Bounds may be supplied at
// construction; the other is left unset (a non-spatial task sets neither).
type Task struct {
	ID            string
	Kind          Kind
	Func          Func
	ResultKeyName string

	geometry orb.Geometry
	bounds   *orb.Bound

	dependencies map[string]*Result
}

// New constructs a Task. geometry and bounds are mutually exclusive; pass
// the zero value (nil, nil) for a non-spatial task.
func New(id string, kind Kind, fn Func, geometry orb.Geometry, bounds *orb.Bound) (*Task, error) {
	if geometry != nil && bounds != nil {
		return nil, ErrBothGeometryAndBounds
	}
	t := &Task{
		ID:           id,
		Kind:         kind,
		Func:         fn,
		geometry:     geometry,
		bounds:       bounds,
		dependencies: make(map[string]*Result),
	}
	if t.ResultKeyName == "" {
		t.ResultKeyName = id
	}
	return t, nil
}

// HasGeometry reports whether the task carries a spatial extent, either
// directly as a geometry or derived as bounds.
func (t *Task) HasGeometry() bool {
	return t.geometry != nil || t.bounds != nil
}

// Bounds returns the task's extent as an orb.Bound, deriving it from the
// geometry when only a geometry was supplied. The second return is false
// for a non-spatial task.
func (t *Task) Bounds() (orb.Bound, bool) {
	if t.bounds != nil {
		return *t.bounds, true
	}
	if t.geometry != nil {
		return t.geometry.Bound(), true
	}
	return orb.Bound{}, false
}

// Geometry returns the task's geometry if one was supplied directly.
func (t *Task) Geometry() (orb.Geometry, bool) {
	if t.geometry == nil {
		return nil, false
	}
	return t.geometry, true
}

// AddDependencies merges additional dependency results into the task. It is
// the only mutation the graph permits after construction.
func (t *Task) AddDependencies(deps map[string]*Result) {
	for k, v := range deps {
		t.dependencies[k] = v
	}
}

// Dependencies returns the dependency results currently attached to the
// task, keyed by upstream task id.
func (t *Task) Dependencies() map[string]*Result {
	return t.dependencies
}

// Execute runs the task's function with its resolved dependencies.
func (t *Task) Execute(ctx context.Context) (*Result, error) {
	if t.Func == nil {
		return nil, fmt.Errorf("task: %s has no function", t.ID)
	}
	out, err := t.Func(ctx, t.dependencies)
	if err != nil {
		if IsNoData(err) {
			return &Result{ID: t.ID, Processed: true, Empty: true}, nil
		}
		return &Result{ID: t.ID, Processed: false, Err: err}, err
	}
	return &Result{ID: t.ID, Output: out, Processed: true}, nil
}
