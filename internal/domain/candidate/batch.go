// Package candidate produces batches of uniformly random lowercase strings.
package candidate

import (
	"fmt"

	"github.com/kailas-cloud/monkeys/internal/domain"
)

// Batch is one iteration's candidates stored back to back in a flat buffer.
// Candidate i occupies buf[i*K : (i+1)*K].
type Batch struct {
	ID  uint64
	K   int
	buf []byte
}

// NewBatch wraps buf as a batch of k-length candidates.
func NewBatch(id uint64, k int, buf []byte) (Batch, error) {
	if k <= 0 {
		return Batch{}, fmt.Errorf("window length %d: %w", k, domain.ErrMalformedRecord)
	}
	if len(buf)%k != 0 {
		return Batch{}, fmt.Errorf("buffer of %d bytes is not a multiple of %d: %w", len(buf), k, domain.ErrMalformedRecord)
	}
	return Batch{ID: id, K: k, buf: buf}, nil
}

// Len returns the number of candidates.
func (b Batch) Len() int {
	if b.K == 0 {
		return 0
	}
	return len(b.buf) / b.K
}

// At returns candidate i. The slice aliases the batch buffer.
func (b Batch) At(i int) []byte {
	return b.buf[i*b.K : (i+1)*b.K : (i+1)*b.K]
}

// Bytes returns the flat buffer.
func (b Batch) Bytes() []byte { return b.buf }

// Shards splits the batch into at most n contiguous sub-batches sharing the
// buffer. Every candidate lands in exactly one shard.
func (b Batch) Shards(n int) []Batch {
	total := b.Len()
	if n <= 0 {
		n = 1
	}
	if n > total {
		n = total
	}
	if n == 0 {
		return nil
	}
	out := make([]Batch, 0, n)
	per, extra := total/n, total%n
	start := 0
	for i := 0; i < n; i++ {
		size := per
		if i < extra {
			size++
		}
		out = append(out, Batch{ID: b.ID, K: b.K, buf: b.buf[start*b.K : (start+size)*b.K]})
		start += size
	}
	return out
}
