// Package coverage tracks which character offsets of each work have been
// matched by a verified hit. Bitmaps only grow.
package coverage

import (
	"context"
	"fmt"
	"sync"

	"github.com/kailas-cloud/monkeys/internal/domain"
	"github.com/kailas-cloud/monkeys/internal/domain/bitmap"
	"github.com/kailas-cloud/monkeys/internal/domain/checkpoint"
	"github.com/kailas-cloud/monkeys/internal/metrics"
)

// Tracker owns the per-work bitmaps of a run. Writes come from the single
// reduction step; reads may be concurrent.
type Tracker struct {
	mu         sync.RWMutex
	repo       Repository
	runID      string
	works      []domain.Work
	bitmaps    map[string]*bitmap.Bitmap
	generation uint64
	iterations uint64
	dirty      bool
}

// New creates a tracker for works. Call Load before applying hits.
func New(repo Repository, works []domain.Work, runID string) *Tracker {
	t := &Tracker{
		repo:    repo,
		runID:   runID,
		works:   works,
		bitmaps: make(map[string]*bitmap.Bitmap, len(works)),
	}
	for _, w := range works {
		t.bitmaps[w.Name()] = bitmap.New(w.Len())
	}
	return t
}

// Load restores bitmaps and the iteration counter from the last checkpoint.
// Without a checkpoint every work starts empty. A checkpoint that does not
// describe exactly the loaded works is a configuration mismatch.
func (t *Tracker) Load(ctx context.Context) error {
	cp, err := t.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if cp.Empty() {
		return nil
	}
	if len(cp.Bitmaps) != len(t.works) {
		return domain.NewMismatch("bitmap count", len(cp.Bitmaps), len(t.works))
	}
	for _, w := range t.works {
		b, ok := cp.Bitmaps[w.Name()]
		if !ok {
			return domain.NewMismatch("work "+w.Name(), "absent", "present")
		}
		if b.Len() != w.Len() {
			return domain.NewMismatch("length of "+w.Name(), b.Len(), w.Len())
		}
	}

	t.bitmaps = cp.Bitmaps
	t.generation = cp.Generation
	t.iterations = cp.Iterations
	t.publishLocked()
	return nil
}

// ApplyHits marks [off, off+matchLength) for every offset and returns how many
// bits were newly set. Re-applying the same hits sets nothing.
func (t *Tracker) ApplyHits(work string, offsets []int, matchLength int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.bitmaps[work]
	if !ok {
		return 0, fmt.Errorf("%q: %w", work, domain.ErrWorkNotFound)
	}
	added := 0
	for _, off := range offsets {
		added += b.SetRange(off, matchLength)
	}
	if added > 0 {
		t.dirty = true
		metrics.CoverageFound.WithLabelValues(work).Set(float64(b.Count()))
	}
	return added, nil
}

// Apply applies a batch of hits of length k.
func (t *Tracker) Apply(hits []domain.Hit, k int) (int, error) {
	added := 0
	for _, h := range hits {
		n, err := t.ApplyHits(h.Work, []int{h.Offset}, k)
		if err != nil {
			return added, err
		}
		added += n
	}
	return added, nil
}

// Stats returns coverage for one work.
func (t *Tracker) Stats(work string) (domain.Coverage, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.bitmaps[work]
	if !ok {
		return domain.Coverage{}, fmt.Errorf("%q: %w", work, domain.ErrWorkNotFound)
	}
	return domain.Coverage{Work: work, Found: b.Count(), Total: b.Len()}, nil
}

// AllStats returns coverage for every work in load order.
func (t *Tracker) AllStats() []domain.Coverage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.Coverage, 0, len(t.works))
	for _, w := range t.works {
		b := t.bitmaps[w.Name()]
		out = append(out, domain.Coverage{Work: w.Name(), Found: b.Count(), Total: b.Len()})
	}
	return out
}

// View returns a copy of every bitmap in load order.
func (t *Tracker) View() checkpoint.View {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v := checkpoint.View{Iterations: t.iterations, Works: make([]checkpoint.WorkState, 0, len(t.works))}
	for _, w := range t.works {
		v.Works = append(v.Works, checkpoint.WorkState{Name: w.Name(), Bitmap: t.bitmaps[w.Name()].Clone()})
	}
	return v
}

// Iterations returns the completed iteration count.
func (t *Tracker) Iterations() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.iterations
}

// SetIterations records the completed iteration count for the next save.
func (t *Tracker) SetIterations(n uint64) {
	t.mu.Lock()
	t.iterations = n
	t.mu.Unlock()
}

// Dirty reports whether hits were applied since the last successful save.
func (t *Tracker) Dirty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dirty
}

// Save persists every bitmap. On failure the tracker stays dirty and the
// previously saved checkpoint remains the recovery point.
func (t *Tracker) Save(ctx context.Context) error {
	t.mu.RLock()
	cp := checkpoint.Checkpoint{
		Generation: t.generation,
		Iterations: t.iterations,
		RunID:      t.runID,
		Bitmaps:    t.bitmaps,
	}
	gen, err := t.repo.Save(ctx, cp)
	t.mu.RUnlock()
	if err != nil {
		metrics.CheckpointsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("save checkpoint: %w", err)
	}

	t.mu.Lock()
	t.generation = gen
	t.dirty = false
	t.mu.Unlock()
	metrics.CheckpointsTotal.WithLabelValues("ok").Inc()
	return nil
}

func (t *Tracker) publishLocked() {
	for _, w := range t.works {
		b := t.bitmaps[w.Name()]
		metrics.CoverageFound.WithLabelValues(w.Name()).Set(float64(b.Count()))
		metrics.CoverageTotal.WithLabelValues(w.Name()).Set(float64(b.Len()))
	}
	metrics.IterationsCompleted.Set(float64(t.iterations))
}

// PublishMetrics sets the coverage gauges for every work.
func (t *Tracker) PublishMetrics() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.publishLocked()
}
