// Package checkpoint defines the persisted run state: the sole recovery source
// after a restart.
package checkpoint

import (
	"slices"
	"time"

	"github.com/kailas-cloud/monkeys/internal/domain"
	"github.com/kailas-cloud/monkeys/internal/domain/bitmap"
)

// Checkpoint is a consistent snapshot of coverage after a completed iteration.
type Checkpoint struct {
	// Generation increases by one with every successful save.
	Generation uint64
	Iterations uint64
	Timestamp  time.Time
	RunID      string
	// Bitmaps maps work name to its coverage.
	Bitmaps map[string]*bitmap.Bitmap
}

// Empty reports whether nothing was ever persisted.
func (c Checkpoint) Empty() bool { return c.Generation == 0 && len(c.Bitmaps) == 0 }

// WorkState pairs a work with its coverage bitmap.
type WorkState struct {
	Name   string
	Bitmap *bitmap.Bitmap
}

// Coverage summarizes the bitmap.
func (w WorkState) Coverage() domain.Coverage {
	return domain.Coverage{Work: w.Name, Found: w.Bitmap.Count(), Total: w.Bitmap.Len()}
}

// View is an ordered, read-only picture of coverage used for reporting.
type View struct {
	Iterations uint64
	Works      []WorkState
}

// View orders the checkpoint's bitmaps by work name.
func (c Checkpoint) View() View {
	names := make([]string, 0, len(c.Bitmaps))
	for name := range c.Bitmaps {
		names = append(names, name)
	}
	slices.Sort(names)
	v := View{Iterations: c.Iterations, Works: make([]WorkState, 0, len(names))}
	for _, name := range names {
		v.Works = append(v.Works, WorkState{Name: name, Bitmap: c.Bitmaps[name]})
	}
	return v
}
