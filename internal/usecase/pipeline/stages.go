package pipeline

import (
	"fmt"

	"github.com/kailas-cloud/monkeys/internal/domain"
	"github.com/kailas-cloud/monkeys/internal/domain/candidate"
)

// FilterStage returns the candidates the filter might contain. Survivors alias
// the batch buffer. Cost is O(len(batch) * hashes), independent of corpus size.
func FilterStage(batch candidate.Batch, f Filter) [][]byte {
	var survivors [][]byte
	for i := 0; i < batch.Len(); i++ {
		c := batch.At(i)
		if f.Test(c) {
			survivors = append(survivors, c)
		}
	}
	return survivors
}

// VerifyStage confirms survivors against the corpus and emits one hit per
// occurrence. A survivor that is not exactly k lowercase letters is returned
// as a malformed record and skipped; absence from the corpus is normal.
func VerifyStage(survivors [][]byte, k int, idx Index) ([]domain.Hit, []error) {
	var (
		hits      []domain.Hit
		malformed []error
	)
	works := idx.Works()
	for _, s := range survivors {
		if err := validate(s, k); err != nil {
			malformed = append(malformed, err)
			continue
		}
		var match string
		for i, w := range works {
			offsets := idx.FindAllAt(i, s)
			if len(offsets) == 0 {
				continue
			}
			if match == "" {
				match = string(s)
			}
			for _, off := range offsets {
				hits = append(hits, domain.Hit{Work: w.Name(), Offset: off, Match: match})
			}
		}
	}
	return hits, malformed
}

func validate(s []byte, k int) error {
	if len(s) != k {
		return fmt.Errorf("candidate %q has length %d, want %d: %w", s, len(s), k, domain.ErrMalformedRecord)
	}
	for _, c := range s {
		if c < 'a' || c > 'z' {
			return fmt.Errorf("candidate %q contains %q: %w", s, c, domain.ErrMalformedRecord)
		}
	}
	return nil
}
