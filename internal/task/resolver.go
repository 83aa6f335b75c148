package task

// Direction tells the resolver which adjacent zoom batch a TileTaskBatch
// should draw its dependencies from.
type Direction int

const (
	// DirectionNone is used by the first-processed batch (a baseline zoom
	// or, absent baselevels, the lowest configured zoom): it has no
	// adjacent tile batch to depend on.
	DirectionNone Direction = iota
	// DirectionChildren resolves dependencies from the previous batch at
	// zoom+1 (already drained, since batches below the baseline range are
	// emitted in descending zoom order).
	DirectionChildren
	// DirectionParent resolves dependencies from the previous batch at
	// zoom-1 (already drained, since batches above the baseline range are
	// emitted in ascending zoom order).
	DirectionParent
)

// ResolveTileDependencies wires each task in batch to the result(s) it
// depends on in previous, per §4.3: exactly the intersection of the
// previous batch with the task's spatial key, no duplicates, no omissions.
// previousResults holds the completed results of previous's tasks, keyed by
// task id; a task whose dependency has not yet completed is simply omitted
// (the graph builder guarantees previous is fully drained before this
// runs, so in practice every intersecting task has a result by the time
// this is called).
func ResolveTileDependencies(batch *TileTaskBatch, previous *TileTaskBatch, direction Direction, previousResults map[string]*Result) {
	if previous == nil || direction == DirectionNone {
		return
	}
	for _, t := range batch.Tasks {
		var upstream []*TileTask
		switch direction {
		case DirectionChildren:
			upstream = previous.IntersectTile(t.Tile)
		case DirectionParent:
			if p, ok := previous.IntersectParent(t.Tile); ok {
				upstream = []*TileTask{p}
			}
		}
		deps := make(map[string]*Result, len(upstream))
		for _, u := range upstream {
			if r, ok := previousResults[u.ID]; ok {
				deps[u.ID] = r
			}
		}
		t.AddDependencies(deps)
	}
}

// ResolvePreprocessingDependencies attaches preprocessing results to tile
// tasks in the first processed batch, matching each tile's bounds against
// every preprocessing task's bounds (a non-spatial preprocessing task, one
// with no bounds, is attached to every tile).
func ResolvePreprocessingDependencies(batch *TileTaskBatch, preprocessing *TaskBatch, preResults map[string]*Result) {
	if preprocessing == nil {
		return
	}
	for _, t := range batch.Tasks {
		tb, ok := t.Bounds()
		if !ok {
			continue
		}
		deps := make(map[string]*Result)
		for _, p := range preprocessing.Tasks {
			pb, hasBounds := p.Bounds()
			if hasBounds && !tb.Intersects(pb) {
				continue
			}
			if r, ok := preResults[p.ID]; ok {
				deps[p.ID] = r
			}
		}
		t.AddDependencies(deps)
	}
}
