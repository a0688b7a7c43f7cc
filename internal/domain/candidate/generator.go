package candidate

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/monkeys/internal/domain"
)

const (
	// Alphabet size; candidates use 'a'..'z'.
	Alphabet = 26

	lettersPerDraw = 13
	// pow13 is 26^13, the largest power of 26 below 2^64.
	pow13 uint64 = 26 * 26 * 26 * 26 * 26 * 26 * 26 * 26 * 26 * 26 * 26 * 26 * 26
	// drawLimit is the largest multiple of pow13 that fits in uint64.
	drawLimit = 7 * pow13
)

// Generator draws candidate batches. The process seed is read once from the
// entropy source; every (batch, shard) pair gets an independent ChaCha8 stream
// derived from it, so shards can fill in parallel without sharing state.
type Generator struct {
	seed    [32]byte
	workers int
}

// NewGenerator seeds a generator from entropy (normally crypto/rand.Reader).
func NewGenerator(entropy io.Reader, workers int) (*Generator, error) {
	g := &Generator{workers: max(workers, 1)}
	if _, err := io.ReadFull(entropy, g.seed[:]); err != nil {
		return nil, fmt.Errorf("read seed: %w: %w", domain.ErrRandomness, err)
	}
	return g, nil
}

// Next returns batch id with size candidates of length k.
func (g *Generator) Next(ctx context.Context, id uint64, size, k int) (Batch, error) {
	if size < 0 || k <= 0 {
		return Batch{}, fmt.Errorf("batch size %d, window length %d: %w", size, k, domain.ErrMalformedRecord)
	}
	batch, err := NewBatch(id, k, make([]byte, size*k))
	if err != nil {
		return Batch{}, err
	}

	eg, _ := errgroup.WithContext(ctx)
	for i, shard := range batch.Shards(g.workers) {
		src := rand.New(rand.NewChaCha8(g.derive(id, uint64(i))))
		buf := shard.Bytes()
		eg.Go(func() error {
			fillLetters(src, buf)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Batch{}, err
	}
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	return batch, nil
}

func (g *Generator) derive(id, shard uint64) [32]byte {
	var in [48]byte
	copy(in[:32], g.seed[:])
	binary.BigEndian.PutUint64(in[32:40], id)
	binary.BigEndian.PutUint64(in[40:48], shard)
	return sha256.Sum256(in[:])
}

// fillLetters writes uniform 'a'..'z' bytes. Each accepted 64-bit draw below
// drawLimit yields 13 independent base-26 digits.
func fillLetters(r *rand.Rand, buf []byte) {
	for i := 0; i < len(buf); {
		v := r.Uint64()
		if v >= drawLimit {
			continue
		}
		v %= pow13
		for j := 0; j < lettersPerDraw && i < len(buf); j++ {
			buf[i] = byte('a' + v%Alphabet)
			v /= Alphabet
			i++
		}
	}
}
