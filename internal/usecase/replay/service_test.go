package replay

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/monkeys/internal/db/memory"
	"github.com/kailas-cloud/monkeys/internal/domain"
	"github.com/kailas-cloud/monkeys/internal/domain/corpus"
	repocov "github.com/kailas-cloud/monkeys/internal/repository/coverage"
	"github.com/kailas-cloud/monkeys/internal/repository/hitlog"
	"github.com/kailas-cloud/monkeys/internal/usecase/coverage"
)

var works = []domain.Work{
	domain.ReconstructWork("Hamlet", "tobeornottobe"),
	domain.ReconstructWork("Macbeth", "fairisfoul"),
}

type fixture struct {
	store   *memory.Store
	svc     *Service
	tracker *coverage.Tracker
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	idx, err := corpus.NewIndex(works, corpus.StrategySuffixArray)
	if err != nil {
		t.Fatal(err)
	}
	s := memory.NewStore()
	tr := coverage.New(repocov.New(s, nil), works, "replay")
	if err := tr.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	return fixture{store: s, svc: New(hitlog.New(s), idx, 3, nil), tracker: tr}
}

func (f fixture) put(t *testing.T, key, data string) {
	t.Helper()
	if err := f.store.Put(context.Background(), key, []byte(data)); err != nil {
		t.Fatal(err)
	}
}

func TestRun_SkipsOnlyMalformedLines(t *testing.T) {
	f := newFixture(t)
	f.put(t, hitlog.Key(3), "3\ttob,\nnot a hit line\n3\tfou,\n")
	f.put(t, hitlog.Key(9), "9\tTOB,\n9\ttobe,\n9\tzzz,\n9\tott,\n")

	rep, err := f.svc.Run(context.Background(), f.tracker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Files != 2 {
		t.Errorf("expected 2 files, got %d", rep.Files)
	}
	// "not a hit line" and "TOB," fail to parse; "tobe" has the wrong length.
	if rep.Malformed != 3 {
		t.Errorf("expected 3 malformed, got %d", rep.Malformed)
	}
	if rep.Rejected != 1 {
		t.Errorf("expected 1 rejected, got %d", rep.Rejected)
	}
	// tob occurs twice in Hamlet.
	if rep.Hits != 4 {
		t.Errorf("expected 4 hits, got %d", rep.Hits)
	}

	hamlet, err := f.tracker.Stats("Hamlet")
	if err != nil {
		t.Fatal(err)
	}
	// tob at 0 and 9, ott at 7: offsets 0-2 and 7-11.
	if hamlet.Found != 8 {
		t.Errorf("expected 8 found in Hamlet, got %d", hamlet.Found)
	}
	macbeth, _ := f.tracker.Stats("Macbeth")
	if macbeth.Found != 3 {
		t.Errorf("expected 3 found in Macbeth, got %d", macbeth.Found)
	}
	if f.tracker.Iterations() != 9 {
		t.Errorf("expected iterations 9, got %d", f.tracker.Iterations())
	}
	if f.tracker.Dirty() {
		t.Error("expected tracker saved")
	}
}

func TestRun_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.put(t, hitlog.Key(1), "1\tfai,\n")

	if _, err := f.svc.Run(context.Background(), f.tracker); err != nil {
		t.Fatal(err)
	}
	rep, err := f.svc.Run(context.Background(), f.tracker)
	if err != nil {
		t.Fatal(err)
	}
	if rep.NewChars != 0 {
		t.Errorf("expected no new chars on second replay, got %d", rep.NewChars)
	}
}

func TestRun_NoLogs(t *testing.T) {
	f := newFixture(t)
	rep, err := f.svc.Run(context.Background(), f.tracker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Files != 0 || rep.Entries != 0 {
		t.Errorf("expected empty report, got %+v", rep)
	}
}

type failingLogs struct{}

func (failingLogs) Keys(_ context.Context) ([]string, error) { return nil, domain.ErrTransientIO }

func (failingLogs) Read(_ context.Context, _ string) ([]hitlog.Entry, []hitlog.Malformed, error) {
	return nil, nil, nil
}

func TestRun_ListFailure(t *testing.T) {
	f := newFixture(t)
	idx, _ := corpus.NewIndex(works, corpus.StrategyScan)
	svc := New(failingLogs{}, idx, 3, nil)
	if _, err := svc.Run(context.Background(), f.tracker); !errors.Is(err, domain.ErrTransientIO) {
		t.Errorf("expected ErrTransientIO, got %v", err)
	}
}
