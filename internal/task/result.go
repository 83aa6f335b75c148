package task

import (
	"time"

	"github.com/MeKo-Tech/tilepyramid/internal/tile"
)

// ProfilingSample carries optional per-task measurements gathered by the
// executor's profiler wrapper. The wrapper records Elapsed only; BytesIn,
// BytesOut and RequestCount are not filled by any code in this module.
type ProfilingSample struct {
	Elapsed      time.Duration
	BytesIn      int64
	BytesOut     int64
	RequestCount int
}

// Result is the outcome of executing one Task. Output is opaque to the
// engine; Empty is the distinguished no-data variant, kept separate from a
// nil Output so the two are never conflated.
type Result struct {
	ID        string
	Output    any
	Processed bool
	Tile      *tile.Coords
	Profiling *ProfilingSample
	Err       error
	Empty     bool
}

// IsEmpty reports whether this result represents the no-data outcome.
func (r *Result) IsEmpty() bool {
	return r != nil && r.Empty
}

// Status is the job lifecycle state, see internal/observer for the
// transition rules.
type Status string

const (
	StatusParsing        Status = "parsing"
	StatusInitializing    Status = "initializing"
	StatusRunning         Status = "running"
	StatusRetrying        Status = "retrying"
	StatusPostProcessing  Status = "post_processing"
	StatusDone            Status = "done"
	StatusCancelled       Status = "cancelled"
	StatusFailed          Status = "failed"
)

// Progress reports current/total counters for an attempt. Total is fixed
// when a batch run starts; current is monotonically non-decreasing.
type Progress struct {
	Current int
	Total   int
}

// Done reports whether the progress has reached its total.
func (p Progress) Done() bool {
	return p.Total > 0 && p.Current >= p.Total
}
