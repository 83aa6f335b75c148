package task

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskMutualExclusivity(t *testing.T) {
	bnd := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}
	geom := orb.Point{0.5, 0.5}

	_, err := New("both", KindTile, nil, geom, &bnd)
	require.ErrorIs(t, err, ErrBothGeometryAndBounds)

	tsk, err := New("neither", KindTile, nil, nil, nil)
	require.NoError(t, err)
	assert.False(t, tsk.HasGeometry())

	tsk, err = New("geom-only", KindTile, nil, geom, nil)
	require.NoError(t, err)
	assert.True(t, tsk.HasGeometry())
	b, ok := tsk.Bounds()
	require.True(t, ok)
	assert.Equal(t, geom.Bound(), b)

	tsk, err = New("bounds-only", KindTile, nil, nil, &bnd)
	require.NoError(t, err)
	assert.True(t, tsk.HasGeometry())
	b, ok = tsk.Bounds()
	require.True(t, ok)
	assert.Equal(t, bnd, b)
}

func TestTaskResultKeyDefaultsToID(t *testing.T) {
	tsk, err := New("t1", KindPreprocessing, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "t1", tsk.ResultKeyName)
}

func TestTaskExecuteSuccess(t *testing.T) {
	tsk, err := New("ok", KindTile, func(ctx context.Context, deps map[string]*Result) (any, error) {
		return "payload", nil
	}, nil, nil)
	require.NoError(t, err)

	res, err := tsk.Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Processed)
	assert.False(t, res.Empty)
	assert.Equal(t, "payload", res.Output)
}

func TestTaskExecuteNoData(t *testing.T) {
	tsk, err := New("empty", KindTile, func(ctx context.Context, deps map[string]*Result) (any, error) {
		return nil, ErrNoData
	}, nil, nil)
	require.NoError(t, err)

	res, err := tsk.Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Processed)
	assert.True(t, res.Empty)
	assert.True(t, res.IsEmpty())
}

func TestTaskExecuteError(t *testing.T) {
	boom := errors.New("boom")
	tsk, err := New("fails", KindTile, func(ctx context.Context, deps map[string]*Result) (any, error) {
		return nil, boom
	}, nil, nil)
	require.NoError(t, err)

	res, err := tsk.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, res.Processed)
	assert.Equal(t, boom, res.Err)
}

func TestTaskExecuteNoFunc(t *testing.T) {
	tsk, err := New("nofunc", KindTile, nil, nil, nil)
	require.NoError(t, err)

	_, err = tsk.Execute(context.Background())
	require.Error(t, err)
}

func TestTaskDependenciesAccumulate(t *testing.T) {
	tsk, err := New("deps", KindTile, nil, nil, nil)
	require.NoError(t, err)

	tsk.AddDependencies(map[string]*Result{"a": {ID: "a"}})
	tsk.AddDependencies(map[string]*Result{"b": {ID: "b"}})

	deps := tsk.Dependencies()
	assert.Len(t, deps, 2)
	assert.Equal(t, "a", deps["a"].ID)
	assert.Equal(t, "b", deps["b"].ID)
}
