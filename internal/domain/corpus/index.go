package corpus

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"index/suffixarray"
	"slices"
	"strings"

	"github.com/kailas-cloud/monkeys/internal/domain"
)

// Strategy selects how FindAll locates occurrences.
type Strategy string

// Lookup strategies. Both return identical offset sets.
const (
	StrategySuffixArray Strategy = "suffixarray"
	StrategyScan        Strategy = "scan"
)

// Index holds the loaded works and answers exact substring queries.
// It is read-only after NewIndex and safe for concurrent use.
type Index struct {
	works    []domain.Work
	byName   map[string]int
	arrays   []*suffixarray.Index
	strategy Strategy
	digest   [16]byte
}

// NewIndex builds the index. Work names must be unique.
func NewIndex(works []domain.Work, strategy Strategy) (*Index, error) {
	if strategy == "" {
		strategy = StrategySuffixArray
	}
	if strategy != StrategySuffixArray && strategy != StrategyScan {
		return nil, fmt.Errorf("unknown lookup strategy %q", strategy)
	}

	idx := &Index{
		works:    slices.Clone(works),
		byName:   make(map[string]int, len(works)),
		strategy: strategy,
	}
	h := sha256.New()
	var lenBuf [8]byte
	for i, w := range works {
		if _, dup := idx.byName[w.Name()]; dup {
			return nil, fmt.Errorf("duplicate work %q: %w", w.Name(), domain.ErrInvalidWork)
		}
		idx.byName[w.Name()] = i

		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(w.Name())))
		h.Write(lenBuf[:])
		h.Write([]byte(w.Name()))
		binary.BigEndian.PutUint64(lenBuf[:], uint64(w.Len()))
		h.Write(lenBuf[:])
		h.Write([]byte(w.Text()))
	}
	copy(idx.digest[:], h.Sum(nil))

	if strategy == StrategySuffixArray {
		idx.arrays = make([]*suffixarray.Index, len(works))
		for i, w := range works {
			idx.arrays[i] = suffixarray.New([]byte(w.Text()))
		}
	}
	return idx, nil
}

// Works returns the works in load order.
func (x *Index) Works() []domain.Work { return x.works }

// Len returns the number of works.
func (x *Index) Len() int { return len(x.works) }

// Work returns the work with the given name.
func (x *Index) Work(name string) (domain.Work, bool) {
	i, ok := x.byName[name]
	if !ok {
		return domain.Work{}, false
	}
	return x.works[i], true
}

// Digest identifies the corpus content: names and texts in load order.
func (x *Index) Digest() [16]byte { return x.digest }

// Contains reports whether s occurs in the named work. The empty string is
// contained in every loaded work; unknown works contain nothing.
func (x *Index) Contains(work, s string) bool {
	i, ok := x.byName[work]
	if !ok {
		return false
	}
	if s == "" {
		return true
	}
	return strings.Contains(x.works[i].Text(), s)
}

// FindAll returns every offset of s in the named work, overlaps included,
// in ascending order.
func (x *Index) FindAll(work, s string) []int {
	i, ok := x.byName[work]
	if !ok {
		return nil
	}
	return x.FindAllAt(i, []byte(s))
}

// FindAllAt is FindAll addressed by work position, for hot loops.
func (x *Index) FindAllAt(i int, s []byte) []int {
	if len(s) == 0 || i < 0 || i >= len(x.works) {
		return nil
	}
	if x.strategy == StrategySuffixArray {
		offsets := x.arrays[i].Lookup(s, -1)
		slices.Sort(offsets)
		return offsets
	}
	return scanAll(x.works[i].Text(), string(s))
}

func scanAll(text, s string) []int {
	var offsets []int
	start := 0
	for {
		j := strings.Index(text[start:], s)
		if j < 0 {
			return offsets
		}
		offsets = append(offsets, start+j)
		start += j + 1
		if start > len(text)-len(s) {
			return offsets
		}
	}
}
