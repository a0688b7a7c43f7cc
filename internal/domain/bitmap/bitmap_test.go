package bitmap

import (
	"errors"
	"testing"

	"pgregory.net/rapid"

	"github.com/kailas-cloud/monkeys/internal/domain"
)

func TestSetRangeOverlappingHits(t *testing.T) {
	// "tobe" at 0 and 9 in "tobeornottobe".
	b := New(13)
	if got := b.SetRange(0, 4); got != 4 {
		t.Fatalf("first hit: expected 4 new bits, got %d", got)
	}
	if got := b.SetRange(9, 4); got != 4 {
		t.Fatalf("second hit: expected 4 new bits, got %d", got)
	}
	want := map[int]bool{0: true, 1: true, 2: true, 3: true, 9: true, 10: true, 11: true, 12: true}
	for i := 0; i < 13; i++ {
		if b.Has(i) != want[i] {
			t.Errorf("bit %d: expected %v", i, want[i])
		}
	}
	if b.Count() != 8 {
		t.Errorf("expected count 8, got %d", b.Count())
	}
}

func TestSetRangeClipsToLength(t *testing.T) {
	b := New(5)
	if got := b.SetRange(3, 9); got != 2 {
		t.Errorf("expected 2 new bits, got %d", got)
	}
	if got := b.SetRange(-2, 3); got != 1 {
		t.Errorf("expected 1 new bit, got %d", got)
	}
	if b.Has(5) || b.Set(7) {
		t.Error("out of range bits must stay false")
	}
}

func TestMarshalLSB0(t *testing.T) {
	b := New(10)
	b.Set(0)
	b.Set(3)
	b.Set(9)
	raw, _ := b.MarshalBinary()
	if len(raw) != 2 {
		t.Fatalf("expected 2 bytes, got %d", len(raw))
	}
	if raw[0] != 0b00001001 || raw[1] != 0b00000010 {
		t.Errorf("unexpected packing %08b %08b", raw[0], raw[1])
	}
}

func TestUnmarshalLengthMismatch(t *testing.T) {
	_, err := Unmarshal([]byte{0xff}, 13)
	if !errors.Is(err, domain.ErrConfigMismatch) {
		t.Errorf("expected ErrConfigMismatch, got %v", err)
	}
}

func TestUnmarshalClearsPadding(t *testing.T) {
	b, err := Unmarshal([]byte{0xff}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if b.Count() != 3 {
		t.Errorf("expected 3 bits counted, got %d", b.Count())
	}
}

func TestRuns(t *testing.T) {
	b := New(6)
	b.SetRange(2, 2)
	type run struct {
		start, length int
		set           bool
	}
	var got []run
	b.Runs(func(s, l int, set bool) { got = append(got, run{s, l, set}) })
	want := []run{{0, 2, false}, {2, 2, true}, {4, 2, false}}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("run %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestUnionLengthMismatch(t *testing.T) {
	_, err := New(4).Union(New(5))
	if !errors.Is(err, domain.ErrConfigMismatch) {
		t.Errorf("expected ErrConfigMismatch, got %v", err)
	}
}

func TestRoundTrip_Properties(t *testing.T) {
	rapid.Check(t, testRoundTrip_Properties)
}

func testRoundTrip_Properties(t *rapid.T) {
	n := rapid.IntRange(0, 200).Draw(t, "n")
	b := New(n)
	switch rapid.IntRange(0, 2).Draw(t, "shape") {
	case 1:
		b.SetRange(0, n)
	case 2:
		for _, i := range rapid.SliceOf(rapid.IntRange(0, max(n-1, 0))).Draw(t, "bits") {
			b.Set(i)
		}
	}

	raw, err := b.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(raw, n)
	if err != nil {
		t.Fatal(err)
	}
	if got.Count() != b.Count() {
		t.Fatalf("count: expected %d, got %d", b.Count(), got.Count())
	}
	for i := 0; i < n; i++ {
		if got.Has(i) != b.Has(i) {
			t.Fatalf("bit %d differs after round trip", i)
		}
	}
}

func TestMonotoneIdempotent_Properties(t *testing.T) {
	rapid.Check(t, testMonotoneIdempotent_Properties)
}

func testMonotoneIdempotent_Properties(t *rapid.T) {
	n := rapid.IntRange(1, 300).Draw(t, "n")
	b := New(n)
	hits := rapid.SliceOf(rapid.IntRange(0, n-1)).Draw(t, "offsets")
	k := rapid.IntRange(1, 12).Draw(t, "k")

	for _, off := range hits {
		before := b.Clone()
		b.SetRange(off, k)
		for i := 0; i < n; i++ {
			if before.Has(i) && !b.Has(i) {
				t.Fatalf("bit %d was cleared", i)
			}
		}
		if b.Count() < before.Count() {
			t.Fatalf("count decreased from %d to %d", before.Count(), b.Count())
		}
	}

	count := b.Count()
	for _, off := range hits {
		if added := b.SetRange(off, k); added != 0 {
			t.Fatalf("re-applying offset %d set %d new bits", off, added)
		}
	}
	if b.Count() != count {
		t.Fatalf("re-applying hits changed count %d -> %d", count, b.Count())
	}
}
