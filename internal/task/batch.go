package task

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"

	"github.com/MeKo-Tech/tilepyramid/internal/tile"
)

// TaskBatch is an unordered set of tasks of the same kind, e.g. the single
// preprocessing batch.
type TaskBatch struct {
	ID    string
	Tasks []*Task
}

// TileTaskBatch is a TaskBatch whose members all share one pyramid and one
// zoom level, indexed by tile address so children of an upper-zoom task can
// be found in O(k). Grounded on mapchete's TileTaskBatch/IndexedFeatures.
type TileTaskBatch struct {
	ID    string
	Zoom  uint32
	Tasks []*TileTask

	byAddress map[tile.Coords]*TileTask
}

// NewTileTaskBatch builds an indexed batch from a set of tile tasks, which
// must all share zoom.
func NewTileTaskBatch(id string, zoom uint32, tasks []*TileTask) (*TileTaskBatch, error) {
	idx := make(map[tile.Coords]*TileTask, len(tasks))
	for _, t := range tasks {
		if t.Tile.Z != zoom {
			return nil, fmt.Errorf("task: batch %s: tile %s does not belong to zoom %d", id, t.Tile, zoom)
		}
		idx[t.Tile] = t
	}
	return &TileTaskBatch{ID: id, Zoom: zoom, Tasks: tasks, byAddress: idx}, nil
}

// IntersectTile returns the up-to-four tasks in this batch that are the
// children of a tile at zoom-1, in deterministic child order (top-left,
// top-right, bottom-left, bottom-right).
func (b *TileTaskBatch) IntersectTile(parent tile.Coords) []*TileTask {
	children := parent.Children()
	out := make([]*TileTask, 0, len(children))
	for _, c := range children {
		if t, ok := b.byAddress[c]; ok {
			out = append(out, t)
		}
	}
	return out
}

// IntersectParent returns the single task in this batch addressed at the
// parent of child, used when resolving dependencies from a finer batch back
// to its coarser predecessor.
func (b *TileTaskBatch) IntersectParent(child tile.Coords) (*TileTask, bool) {
	parent, ok := child.Parent()
	if !ok {
		return nil, false
	}
	t, ok := b.byAddress[parent]
	return t, ok
}

// IntersectBounds returns every task in the batch whose tile bounds
// intersect bounds, ordered deterministically by (zoom, row, column).
func (b *TileTaskBatch) IntersectBounds(bounds orb.Bound) []*TileTask {
	out := make([]*TileTask, 0)
	for _, t := range b.Tasks {
		tb := t.Tile.Bounds()
		if boundsIntersect(tb, bounds) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, c := out[i].Tile, out[j].Tile
		if a.Z != c.Z {
			return a.Z < c.Z
		}
		if a.Y != c.Y {
			return a.Y < c.Y
		}
		return a.X < c.X
	})
	return out
}

func boundsIntersect(lonLat [4]float64, b orb.Bound) bool {
	minLon, minLat, maxLon, maxLat := lonLat[0], lonLat[1], lonLat[2], lonLat[3]
	if maxLon < b.Min[0] || minLon > b.Max[0] {
		return false
	}
	if maxLat < b.Min[1] || minLat > b.Max[1] {
		return false
	}
	return true
}

// Get returns the task addressed at c, if present.
func (b *TileTaskBatch) Get(c tile.Coords) (*TileTask, bool) {
	t, ok := b.byAddress[c]
	return t, ok
}
