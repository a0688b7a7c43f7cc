package pipeline

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/kailas-cloud/monkeys/internal/domain"
	"github.com/kailas-cloud/monkeys/internal/domain/bloom"
	"github.com/kailas-cloud/monkeys/internal/domain/candidate"
	"github.com/kailas-cloud/monkeys/internal/domain/corpus"
)

// --- Mocks ---

type acceptAll struct{}

func (acceptAll) Test([]byte) bool { return true }

type rejectAll struct{}

func (rejectAll) Test([]byte) bool { return false }

func newIndex(t *testing.T) *corpus.Index {
	t.Helper()
	idx, err := corpus.NewIndex([]domain.Work{
		domain.ReconstructWork("Hamlet", "tobeornottobe"),
		domain.ReconstructWork("Sonnet", "shalliobe"),
	}, corpus.StrategySuffixArray)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return idx
}

func mustBatch(t *testing.T, k int, s string) candidate.Batch {
	t.Helper()
	b, err := candidate.NewBatch(1, k, []byte(s))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return b
}

// --- Tests ---

func TestFilterStage(t *testing.T) {
	b := mustBatch(t, 3, "abcxyz")
	if got := FilterStage(b, acceptAll{}); len(got) != 2 {
		t.Errorf("expected 2 survivors, got %d", len(got))
	}
	if got := FilterStage(b, rejectAll{}); len(got) != 0 {
		t.Errorf("expected 0 survivors, got %d", len(got))
	}
}

func TestVerifyStage_AllOffsetsAllWorks(t *testing.T) {
	idx := newIndex(t)
	hits, malformed := VerifyStage([][]byte{[]byte("obe"), []byte("qqq")}, 3, idx)
	if len(malformed) != 0 {
		t.Fatalf("unexpected malformed: %v", malformed)
	}

	want := []domain.Hit{
		{Work: "Hamlet", Offset: 1, Match: "obe"},
		{Work: "Hamlet", Offset: 10, Match: "obe"},
		{Work: "Sonnet", Offset: 6, Match: "obe"},
	}
	if !slices.Equal(hits, want) {
		t.Errorf("expected %v, got %v", want, hits)
	}
}

func TestVerifyStage_Malformed(t *testing.T) {
	idx := newIndex(t)
	hits, malformed := VerifyStage([][]byte{[]byte("oBe"), []byte("ob"), []byte("tob")}, 3, idx)
	if len(malformed) != 2 {
		t.Fatalf("expected 2 malformed, got %d", len(malformed))
	}
	for _, err := range malformed {
		if !errors.Is(err, domain.ErrMalformedRecord) {
			t.Errorf("expected ErrMalformedRecord, got %v", err)
		}
	}
	if len(hits) != 2 {
		t.Errorf("expected the valid survivor to still verify, got %v", hits)
	}
}

func TestRun_ShardsAgreeWithSequential(t *testing.T) {
	idx := newIndex(t)
	b := mustBatch(t, 3, "tobqqqobeshaXYZnotzzz")

	for _, workers := range []int{1, 2, 7} {
		res, err := New(acceptAll{}, idx, nil).WithWorkers(workers).Run(context.Background(), b)
		if err != nil {
			t.Fatalf("workers=%d: unexpected error: %v", workers, err)
		}
		if res.Stats.Candidates != 7 || res.Stats.Survivors != 7 {
			t.Errorf("workers=%d: unexpected stats %+v", workers, res.Stats)
		}
		if res.Stats.Malformed != 1 {
			t.Errorf("workers=%d: expected 1 malformed, got %d", workers, res.Stats.Malformed)
		}
		// tob x2, obe x3, sha x1, not x1
		if res.Stats.Hits != 7 {
			t.Errorf("workers=%d: expected 7 hits, got %d (%v)", workers, res.Stats.Hits, res.Hits)
		}
		if want := []string{"tob", "obe", "sha", "not"}; !slices.Equal(res.Matches, want) {
			t.Errorf("workers=%d: expected matches %v, got %v", workers, want, res.Matches)
		}
	}
}

func TestRun_WithRealFilterNoFalseNegatives(t *testing.T) {
	idx := newIndex(t)
	f, err := bloom.Build(idx.Works(), idx.Digest(), bloom.Params{
		VectorBits: 1 << 12, HashCount: 4, Family: bloom.FamilyXXH64, WindowLength: 4,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Every real window must survive and verify.
	var buf []byte
	text := "tobeornottobe"
	for i := 0; i+4 <= len(text); i++ {
		buf = append(buf, text[i:i+4]...)
	}
	b := mustBatch(t, 4, string(buf))

	res, err := New(f, idx, nil).WithWorkers(3).Run(context.Background(), b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stats.Survivors != b.Len() {
		t.Errorf("expected all %d windows to survive, got %d", b.Len(), res.Stats.Survivors)
	}
	if res.Stats.Hits < b.Len() {
		t.Errorf("expected at least %d hits, got %d", b.Len(), res.Stats.Hits)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(acceptAll{}, newIndex(t), nil).Run(ctx, mustBatch(t, 3, "tob"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
